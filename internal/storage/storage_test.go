package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRefFullURL(t *testing.T) {
	bucket, key, err := ParseRef("s3://easel-artifacts/gen/abc/out.png")
	require.NoError(t, err)
	require.Equal(t, "easel-artifacts", bucket)
	require.Equal(t, "gen/abc/out.png", key)
}

func TestParseRefBareKey(t *testing.T) {
	bucket, key, err := ParseRef("gen/abc/out.png")
	require.NoError(t, err)
	require.Empty(t, bucket)
	require.Equal(t, "gen/abc/out.png", key)
}

func TestParseRefRejectsOtherSchemes(t *testing.T) {
	_, _, err := ParseRef("ftp://somewhere/file")
	require.Error(t, err)
}

func TestParseRefRejectsMissingKey(t *testing.T) {
	_, _, err := ParseRef("s3://bucket-only")
	require.Error(t, err)
}

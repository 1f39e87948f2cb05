//go:build integration

package test

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/stretchr/testify/assert"
)

func (s *IntegrationTestSuite) TestSSEStream() {
	eventsURL := fmt.Sprintf("%v/v1/events", s.easelURL)
	req, err := http.NewRequest(http.MethodGet, eventsURL, nil)
	assert.Nil(s.T(), err)
	req.Header.Set("Accept", "text/event-stream")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	assert.Nil(s.T(), err)
	defer resp.Body.Close()

	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	assert.Contains(s.T(), resp.Header.Get("Content-Type"), "text/event-stream")

	// The stream opens with a ping comment.
	scanner := bufio.NewScanner(resp.Body)
	assert.True(s.T(), scanner.Scan())
	assert.True(s.T(), bytes.HasPrefix(scanner.Bytes(), []byte(":")))
}

package bind

import (
	eventctrl "github.com/easel-cloud/easel/api/rest/controller/event"
	genctrl "github.com/easel-cloud/easel/api/rest/controller/generation"
	"github.com/easel-cloud/easel/internal/event"
	"github.com/easel-cloud/easel/internal/storage"
	"github.com/labstack/echo/v4"
)

// Dependencies are the process-scoped collaborators the REST
// controllers need beyond the database connection.
type Dependencies struct {
	Queue   genctrl.Enqueuer
	Bus     event.Bus
	Objects storage.ObjectStore
}

func All(g *echo.Group, deps Dependencies) {
	gens := genctrl.New(deps.Queue)
	downloads := genctrl.NewDownload(deps.Objects)
	events := eventctrl.New(deps.Bus)

	// generations
	{
		g.POST("/generations", gens.Post)
		g.GET("/generations/:id", genctrl.Get)
		g.DELETE("/generations/:id", genctrl.Cancel)
		g.GET("/generations/:id/ancestry", genctrl.Ancestry)
		g.GET("/generations/:id/descendants", genctrl.Descendants)
		g.GET("/generations/:id/download", downloads.Download)
	}

	// boards
	{
		g.GET("/boards/:id/generations", genctrl.ListByBoard)
	}

	// events
	{
		g.GET("/events", events.Stream)
	}
}

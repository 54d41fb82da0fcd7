package contracts

import "github.com/julienschmidt/httprouter"

// Handler is a group of endpoints mounted on the authenticated router by
// app.SetApp.
type Handler interface {
	RegisterRoutes(router *httprouter.Router)
}

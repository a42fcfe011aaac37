// Package historytypes defines core architectural interfaces for chathistory.
package historytypes

// Service defines the interface for chathistory services.
// Services are registered at startup and looked up by commands during execution.
type Service interface {
	Name() string
	Initialize() error
}

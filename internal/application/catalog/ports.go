package catalog

type IDGenerator interface {
	NewID() string
}

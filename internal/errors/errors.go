package errors

import (
	"errors"
	"sync"
)

// Collector gathers non-fatal errors from concurrent work
type Collector struct {
	errors []error
	mutex  sync.Mutex
}

// NewCollector creates a new error collector
func NewCollector() *Collector {
	return &Collector{}
}

// Add records err. Nil errors are ignored.
func (c *Collector) Add(err error) {
	if err == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.errors = append(c.errors, err)
}

// Len returns the number of collected errors
func (c *Collector) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.errors)
}

// Errors returns a copy of the collected errors
func (c *Collector) Errors() []error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	result := make([]error, len(c.errors))
	copy(result, c.errors)
	return result
}

// Err joins the collected errors, or returns nil when there are none
func (c *Collector) Err() error {
	return errors.Join(c.Errors()...)
}

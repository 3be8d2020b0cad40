//go:build property

package watcher

import (
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestDebouncerProperties validates how bursts are collapsed
func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	genEvent := gopter.CombineGens(
		gen.IntRange(0, 5),
		gen.IntRange(int(EventTypeCreated), int(EventTypeRenamed)),
	).Map(func(values []interface{}) ChangeEvent {
		return ChangeEvent{
			Path: fmt.Sprintf("views/f%d.soy", values[0].(int)),
			Type: EventType(values[1].(int)),
		}
	})

	properties.Property("one event per path, last one wins, sorted by path", prop.ForAll(
		func(burst []ChangeEvent) bool {
			if len(burst) == 0 {
				return true
			}

			d := newDebouncer(time.Hour)
			defer d.stop()
			for _, e := range burst {
				d.addEvent(e)
			}
			d.flush()

			var batch []ChangeEvent
			select {
			case batch = <-d.output:
			default:
				return false
			}

			last := make(map[string]EventType)
			for _, e := range burst {
				last[e.Path] = e.Type
			}
			if len(batch) != len(last) {
				return false
			}
			for _, e := range batch {
				if last[e.Path] != e.Type {
					return false
				}
			}
			return slices.IsSortedFunc(batch, func(a, b ChangeEvent) int {
				return strings.Compare(a.Path, b.Path)
			})
		},
		gen.SliceOf(genEvent),
	))

	properties.TestingRun(t)
}

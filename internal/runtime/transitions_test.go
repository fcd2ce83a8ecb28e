package runtime

import (
	"testing"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestWorkflow_CoversTransitionTable(t *testing.T) {
	edges := Workflow()
	for stage, bySignal := range transitions {
		for kind := range bySignal {
			found := false
			for _, e := range edges {
				if e.From == stage && e.Trigger == kind.String() {
					found = true
					break
				}
			}
			assert.True(t, found, "no edge for %s on %s", stage, kind)
		}
	}
}

func TestWorkflow_ReachesEveryStage(t *testing.T) {
	reached := map[domain.Stage]bool{domain.StageNew: true}
	for _, e := range Workflow() {
		assert.True(t, e.From.Valid(), e.From)
		assert.True(t, e.To.Valid(), e.To)
		reached[e.To] = true
	}
	for _, s := range domain.Stages() {
		assert.True(t, reached[s], "stage %s is unreachable", s)
	}
}

package tendril_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/llm"
)

// ExampleAgent_Decide shows a single decision against a scripted model. Without
// an environment model every registered event is offered as a tool.
func ExampleAgent_Decide() {
	events := domain.MustEventRegistry(
		domain.EventSchema{Type: "MOVE", Description: "Make a move"},
		domain.EventSchema{Type: "RESIGN", Description: "Give up"},
	)
	model := llm.NewScripted(llm.ToolCallResponse(llm.Call("MOVE", nil)))

	agent, err := tendril.New(model,
		tendril.WithDescription("You are a game player."),
		tendril.WithEvents(events),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer agent.Close()

	decision, err := agent.Decide(context.Background(), tendril.DecideOptions{
		Goal:  "Win the game",
		State: domain.ObservedState{Value: domain.Atomic("playing")},
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(decision.NextEvent.Type)
	fmt.Println(len(agent.Decisions()))
	// Output:
	// MOVE
	// 1
}

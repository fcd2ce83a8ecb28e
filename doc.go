/*
Package concierge is a WhatsApp booking concierge: a per-customer conversation
state machine that walks a customer from a greeting to a confirmed service
booking, plus a scheduler for one-shot deferred broadcasts.

# Concept

Every inbound message is one unit of work on the sender's session. The engine
classifies the message (greeting, list selection, button, shared location or
free text), looks up the transition for the session's stage, sends exactly one
reply through the messaging gateway and only then persists the new stage. A
failed send leaves the stored session untouched, so the customer can retry.

Sessions of different customers never contend; messages of the same customer
are processed one at a time.

# Usage

	app, err := concierge.New(
		concierge.WithGateway(twilio.New(sid, token)),
		concierge.WithFrom("whatsapp:+14155238886"),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close(context.Background())

	session, err := app.Handle(ctx, domain.Signal{From: "whatsapp:+15550001", Body: "hi"})

	receipt, err := app.ScheduleMessage(ctx, []string{"+15550001"}, "Your technician is on the way", 5)

The HTTP webhook (pkg/adapters/http), the MCP tools (pkg/adapters/mcp) and
the concierge CLI (cmd/concierge) are thin drivers over the same App.
*/
package concierge

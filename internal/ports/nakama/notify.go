package nakama

import (
	"context"
	"encoding/json"

	"taskboard/internal/app"

	"github.com/heroiclabs/nakama-common/runtime"
)

type notifier interface {
	NotificationSend(ctx context.Context, userID, subject string, content map[string]interface{}, code int, sender string, persistent bool) error
}

var notificationCodes = map[app.EventKind]int{
	app.EventDiceRolled:    NotifyDiceRolled,
	app.EventTaskTriggered: NotifyTaskTriggered,
	app.EventTaskExecuted:  NotifyTaskExecuted,
	app.EventTaskVerified:  NotifyTaskVerified,
	app.EventTurnPassed:    NotifyTurnPassed,
	app.EventGameEnded:     NotifyGameEnded,
}

// dispatchEvents delivers engine events as non-persistent notifications.
// Delivery is best effort; the state change is already committed.
func dispatchEvents(ctx context.Context, logger runtime.Logger, n notifier, events []app.Event) {
	for _, ev := range events {
		code, ok := notificationCodes[ev.Kind]
		if !ok {
			logger.Warn("dispatchEvents: no notification code for %s", ev.Kind)
			continue
		}
		content, err := eventContent(ev)
		if err != nil {
			logger.Error("dispatchEvents: failed to encode %s: %v", ev.Kind, err)
			continue
		}
		for _, userID := range ev.Recipients {
			if err := n.NotificationSend(ctx, userID, string(ev.Kind), content, code, "", false); err != nil {
				logger.Warn("dispatchEvents [User:%s]: failed to send %s: %v", userID, ev.Kind, err)
			}
		}
	}
}

func eventContent(ev app.Event) (map[string]interface{}, error) {
	raw, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, err
	}
	content := map[string]interface{}{}
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, err
	}
	content["session_id"] = ev.SessionID
	return content, nil
}

package termui

import (
	"context"
	"fmt"

	"github.com/eiannone/keyboard"
)

// Action is a user command read from the keyboard.
type Action int

const (
	ActionNone Action = iota
	ActionToggle
	ActionDismiss
	ActionQuit
)

func (a Action) String() string {
	switch a {
	case ActionToggle:
		return "toggle"
	case ActionDismiss:
		return "dismiss"
	case ActionQuit:
		return "quit"
	}
	return "none"
}

// mapKey translates a key press: space or enter toggles recording, esc
// dismisses the dialog, q or ctrl-c quits.
func mapKey(char rune, key keyboard.Key) Action {
	switch key {
	case keyboard.KeySpace, keyboard.KeyEnter:
		return ActionToggle
	case keyboard.KeyEsc:
		return ActionDismiss
	case keyboard.KeyCtrlC:
		return ActionQuit
	}
	switch char {
	case ' ':
		return ActionToggle
	case 'q', 'Q':
		return ActionQuit
	}
	return ActionNone
}

// ListenKeys puts the terminal in raw mode and delivers actions until ctx is
// done or the user quits. The terminal is restored before the channel closes.
func ListenKeys(ctx context.Context) (<-chan Action, error) {
	events, err := keyboard.GetKeys(10)
	if err != nil {
		return nil, fmt.Errorf("open keyboard: %w", err)
	}

	actions := make(chan Action)
	go func() {
		defer close(actions)
		defer keyboard.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Err != nil {
					continue
				}
				a := mapKey(ev.Rune, ev.Key)
				if a == ActionNone {
					continue
				}
				select {
				case actions <- a:
				case <-ctx.Done():
					return
				}
				if a == ActionQuit {
					return
				}
			}
		}
	}()
	return actions, nil
}

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"sealed_socket/internal/protocol/messaging"
	"sealed_socket/internal/service/chat"
	"sealed_socket/internal/service/client"
	"sealed_socket/internal/transport"
	"sealed_socket/internal/utils/log"
)

type (
	App struct {
		app     *tview.Application
		chatbox *tview.TextView
		input   *tview.InputField

		client  *client.Client
		timeout time.Duration
	}
)

func NewApp(c *client.Client, timeout time.Duration) *App {
	return &App{
		app:     tview.NewApplication(),
		client:  c,
		timeout: timeout,
	}
}

// Run connects as id and blocks until the UI exits.
func (c *App) Run(ctx context.Context, id string) error {
	c.renderUI(id)
	c.listen()

	if err := c.client.Connect(ctx, id); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer c.client.Disconnect()

	if err := c.app.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func (c *App) Stop() {
	c.app.Stop()
}

func (c *App) renderUI(id string) {
	c.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	title := " Sealed chat "
	if id != "" {
		title = fmt.Sprintf(" Sealed chat as %s ", id)
	}
	c.chatbox.SetBorder(true).SetTitle(title)

	c.input = tview.NewInputField().
		SetLabel("Message: ").
		SetFieldWidth(0)
	c.input.SetBorder(true).SetTitle(" New Message ")

	c.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := c.input.GetText()
		if text == "" {
			return
		}
		c.input.SetText("")

		go func(msg string) {
			if err := c.SendMessage(msg); err != nil {
				log.Error("send message failed", zap.Error(err))
				c.print("[red]error:[-] %s", tview.Escape(err.Error()))
			}
		}(text)
	})

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.chatbox, 0, 1, false).
		AddItem(c.input, 3, 0, true)

	c.app.SetRoot(layout, true).SetFocus(c.input)
}

func (c *App) listen() {
	c.client.On(transport.EventConnect, func(string, messaging.Reply, error) {
		c.print("[gray]connected[-]")
	})
	c.client.On(transport.EventDisconnect, func(reason string, _ messaging.Reply, _ error) {
		c.print("[gray]disconnected: %s[-]", tview.Escape(reason))
	})
	c.client.On(chat.EventMessage, func(data string, _ messaging.Reply, err error) {
		if err := c.ReceiveMessage(data, err); err != nil {
			log.Error("receive message failed", zap.Error(err))
		}
	})
}

func (c *App) SendMessage(msg string) error {
	return c.client.Timeout(c.timeout).Emit(chat.EventMessage, msg, func(ack string, err error) {
		switch {
		case err != nil:
			c.print("[red]not delivered:[-] %s (%s)", tview.Escape(msg), tview.Escape(err.Error()))
		case ack != chat.AckDelivered:
			c.print("[red]%s:[-] %s", tview.Escape(ack), tview.Escape(msg))
		default:
			c.print("[yellow]You:[-] %s", tview.Escape(msg))
		}
	})
}

func (c *App) ReceiveMessage(data string, openErr error) error {
	if openErr != nil {
		return openErr
	}

	var message chat.Message
	if err := json.Unmarshal([]byte(data), &message); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}

	c.print("[green]%s:[-] %s", tview.Escape(message.From), tview.Escape(message.Text))
	return nil
}

func (c *App) print(format string, args ...any) {
	c.app.QueueUpdateDraw(func() {
		fmt.Fprintf(c.chatbox, format+"\n", args...)
		c.chatbox.ScrollToEnd()
	})
}

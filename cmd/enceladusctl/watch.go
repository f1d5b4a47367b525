package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"enceladus/pkg/rooms"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var (
		wsURL string
		join  []string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Join rooms on the broadcast endpoint and print every message",
		Example: `  enceladusctl watch --join thread:7 --join user
  enceladusctl watch --url ws://live.example:3001/ --join thread`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(join) == 0 {
				return errors.New("at least one --join room is required")
			}
			for _, name := range join {
				if _, ok := rooms.Parse(name); !ok {
					return errors.Newf("invalid room %q: want thread, user or thread:<id>", name)
				}
			}
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			if err != nil {
				return errors.Wrapf(err, "dial %s", wsURL)
			}
			defer conn.Close()

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt)
			defer signal.Stop(interrupt)
			go func() {
				<-interrupt
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				conn.Close()
			}()

			return watch(conn, join, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&wsURL, "url", "ws://127.0.0.1:3001/", "broadcast endpoint")
	cmd.Flags().StringArrayVar(&join, "join", nil, "room to join (repeatable)")
	return cmd
}

// watch sends one join message and copies every text frame to out until
// the connection ends.
func watch(conn *websocket.Conn, names []string, out io.Writer) error {
	msg, err := json.Marshal(map[string][]string{"join": names})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return errors.Wrap(err, "send join")
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "read")
		}
		fmt.Fprintln(out, string(data))
	}
}

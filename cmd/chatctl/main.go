package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"realtime-chat/internal/client"
	"realtime-chat/internal/domain"
	"realtime-chat/internal/notify"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "chatctl",
	Short:        "Command line client for the realtime chat server",
	SilenceUsage: true,
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Connect over WebSocket and print presence, messages and notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		token, _ := cmd.Flags().GetString("token")
		userID, _ := cmd.Flags().GetString("user")
		groups, _ := cmd.Flags().GetStringSlice("group")
		peer, _ := cmd.Flags().GetString("open-direct")
		openGroup, _ := cmd.Flags().GetString("open-group")

		if token == "" {
			token = os.Getenv("CHAT_TOKEN")
		}
		if token == "" {
			return errors.New("a token is required (--token or CHAT_TOKEN)")
		}
		if userID == "" {
			return errors.New("--user is required")
		}

		d := notify.NewDispatcher(userID, notify.WithAlert(printAlert))
		switch {
		case peer != "":
			d.OpenDirect(peer, nil)
		case openGroup != "":
			d.OpenGroup(openGroup, openGroup, nil)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c, err := client.Dial(ctx, server, token, d, client.Handlers{
			Roster: func(ids []string) {
				fmt.Printf("%s %s\n", color.GreenString("online:"), strings.Join(ids, ", "))
			},
			Error: func(message string) {
				fmt.Printf("%s %s\n", color.RedString("error:"), message)
			},
			Outcome: printOutcome,
		})
		if err != nil {
			return err
		}
		defer c.Close()

		for _, g := range groups {
			if err := c.JoinGroup(g); err != nil {
				return fmt.Errorf("joining group %s: %w", g, err)
			}
		}
		fmt.Println(color.CyanString("connected to %s as %s", server, userID))
		return c.Run(ctx)
	},
}

// printOutcome 打印追加到当前会话的消息
func printOutcome(kind notify.Kind, msg domain.Message, outcome notify.Outcome) {
	if outcome != notify.Appended {
		return
	}
	sender := msg.SenderName
	if sender == "" {
		sender = msg.SenderID
	}
	fmt.Printf("%s %s: %s\n", color.BlueString("[%s]", kind), color.New(color.Bold).Sprint(sender), describe(msg))
}

func printAlert(n notify.Notification) {
	from := n.SenderName
	if from == "" {
		from = n.SenderID
	}
	if n.Kind == notify.KindGroup {
		name := n.GroupName
		if name == "" {
			name = n.GroupID
		}
		from = fmt.Sprintf("%s in %s", from, name)
	}
	body := n.Preview
	switch {
	case n.HasImage:
		body = "sent an image"
	case n.FileName != "":
		body = "sent " + n.FileName
	}
	fmt.Printf("%s %s: %s\n", color.YellowString("notification"), from, body)
}

func describe(msg domain.Message) string {
	switch {
	case msg.Text != "":
		return msg.Text
	case msg.Image != "":
		return color.MagentaString("<image %s>", msg.Image)
	case msg.File != nil:
		return color.MagentaString("<file %s>", msg.File.OriginalName)
	default:
		return ""
	}
}

func init() {
	listenCmd.Flags().String("server", "http://localhost:8080", "chat server base URL")
	listenCmd.Flags().String("token", "", "JWT issued by /api/auth/login (defaults to CHAT_TOKEN)")
	listenCmd.Flags().String("user", "", "your user ID, used to ignore self-originated messages")
	listenCmd.Flags().StringSlice("group", nil, "group rooms to join (repeatable)")
	listenCmd.Flags().String("open-direct", "", "treat the direct conversation with this user as open")
	listenCmd.Flags().String("open-group", "", "treat this group conversation as open")
	rootCmd.AddCommand(listenCmd)
}

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jlgrimes/quarrel-voice/internal/adapters/device"
	"github.com/jlgrimes/quarrel-voice/internal/adapters/rtc"
	"github.com/jlgrimes/quarrel-voice/internal/adapters/ws"
	"github.com/jlgrimes/quarrel-voice/internal/config"
	"github.com/jlgrimes/quarrel-voice/internal/core"
	"github.com/jlgrimes/quarrel-voice/internal/domain"
	"github.com/jlgrimes/quarrel-voice/internal/voice"
)

var (
	flagName   string
	flagRelay  string
	flagScreen string
)

func init() {
	joinCmd.Flags().StringVarP(&flagName, "name", "n", "", "display name shown to other participants")
	joinCmd.Flags().StringVar(&flagRelay, "relay", "", "relay websocket URL")
	joinCmd.Flags().StringVar(&flagScreen, "screen", "", "VP8 IVF file to stream when sharing")
	rootCmd.AddCommand(joinCmd)
}

var joinCmd = &cobra.Command{
	Use:   "join <channel>",
	Short: "Join a voice channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if flagName != "" {
			cfg.DisplayName = flagName
		}
		if flagRelay != "" {
			cfg.RelayURL = flagRelay
		}
		if flagScreen != "" {
			cfg.ScreenFile = flagScreen
		}

		transport, err := ws.Dial(ctx, cfg.RelayURL)
		if err != nil {
			return fmt.Errorf("relay dial: %w", err)
		}
		defer transport.Close()

		self, err := domain.NewUser(cfg.DisplayName)
		if err != nil {
			self = domain.User{ID: domain.UserID(uuid.NewString()), DisplayName: "guest"}
		}

		var screen core.ScreenSource
		if cfg.ScreenFile != "" {
			screen = device.FileScreen{Path: cfg.ScreenFile, Loop: true}
		}

		sess := voice.NewSession(voice.Config{
			Self:           self,
			Transport:      transport,
			Links:          rtc.Factory(rtc.DefaultConfig(cfg.STUNServers)),
			Sinks:          device.NewSpeaker,
			Microphone:     device.Microphone{},
			Screen:         screen,
			SpeakInterval:  cfg.SpeakInterval,
			SpeakThreshold: cfg.SpeakThreshold,
			OnUpdate:       printSnapshot,
		})

		go func() {
			sess.Run(ctx)
			cancel()
		}()

		ch := domain.ChannelID(args[0])
		if err := sess.JoinChannel(ctx, ch); err != nil {
			return fmt.Errorf("join %s: %w", ch, err)
		}
		defer sess.LeaveChannel()

		fmt.Println("commands: [m]ute  [d]eafen  [s]hare  [q]uit")
		go readCommands(ctx, cancel, sess)

		<-ctx.Done()
		return nil
	},
}

// readCommands turns single-letter stdin lines into session calls. Each
// letter toggles its state.
func readCommands(ctx context.Context, quit context.CancelFunc, sess *voice.Session) {
	var muted, deafened, sharing bool
	scan := bufio.NewScanner(os.Stdin)
	for scan.Scan() {
		switch strings.TrimSpace(scan.Text()) {
		case "m":
			muted = !muted
			sess.SetMuted(muted)
		case "d":
			deafened = !deafened
			sess.SetDeafened(deafened)
			muted = muted || deafened
		case "s":
			if sharing {
				sess.StopShare()
				sharing = false
				break
			}
			if err := sess.StartShare(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "share: %v\n", err)
				break
			}
			sharing = true
		case "q":
			quit()
			return
		}
	}
}

func printSnapshot(s voice.Snapshot) {
	if s.Connecting {
		fmt.Printf("connecting to %s...\n", s.ChannelID)
		return
	}
	if s.ChannelID == "" {
		fmt.Println("idle")
		return
	}

	speaking := make(map[domain.UserID]bool, len(s.Speaking))
	for _, id := range s.Speaking {
		speaking[id] = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", s.ChannelID)
	for _, p := range s.Participants {
		b.WriteString(" ")
		b.WriteString(p.User.DisplayName)
		var marks []string
		if speaking[p.User.ID] {
			marks = append(marks, "speaking")
		}
		if p.Muted {
			marks = append(marks, "muted")
		}
		if p.Deafened {
			marks = append(marks, "deaf")
		}
		if s.Sharer == p.User.ID {
			marks = append(marks, "sharing")
		}
		if len(marks) > 0 {
			fmt.Fprintf(&b, "(%s)", strings.Join(marks, ","))
		}
	}
	fmt.Println(b.String())
}

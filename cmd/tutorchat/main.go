// ABOUTME: Terminal chat client for tutorchat
// ABOUTME: Line-oriented input with slash commands; incoming messages print as they arrive

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/tutorchat/internal/client"
	"github.com/2389/tutorchat/internal/config"
	"github.com/2389/tutorchat/internal/credential"
	"github.com/2389/tutorchat/internal/dispatch"
	"github.com/2389/tutorchat/internal/model"
	"github.com/2389/tutorchat/internal/session"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "":
		err = runChat(ctx)
	case "token":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: tutorchat token <value>")
			os.Exit(1)
		}
		err = runToken(ctx, os.Args[2])
	case "logout":
		err = runLogout(ctx)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: tutorchat [command]

Commands:
  (none)          Start the interactive chat client
  token <value>   Store the bearer credential used to sign in
  logout          Remove the stored credential
  help            Show this help

Environment:
  TUTORCHAT_CONFIG       Config file path (default: ~/.config/tutorchat/config.yaml)
  TUTORCHAT_API_URL      REST base URL
  TUTORCHAT_CHANNEL_URL  Real-time channel URL
  TUTORCHAT_TOKEN        Bootstrap credential written to the store at startup
  TUTORCHAT_LOG_LEVEL    debug, info, warn or error`)
}

// openStore loads the config and opens its credential store. A bootstrap
// token from the environment replaces whatever is stored.
func openStore(ctx context.Context) (*config.Config, credential.Store, error) {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	creds, err := credential.Open(cfg.Credential.Backend, cfg.Credential.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening credential store: %w", err)
	}

	if cfg.Token != "" {
		if err := creds.SetToken(ctx, cfg.Token); err != nil {
			_ = creds.Close()
			return nil, nil, fmt.Errorf("storing credential: %w", err)
		}
	}
	return cfg, creds, nil
}

func runToken(ctx context.Context, token string) error {
	_, creds, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer creds.Close()

	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token must not be empty")
	}
	if err := creds.SetToken(ctx, token); err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}
	color.Green("Credential stored.")
	return nil
}

func runLogout(ctx context.Context) error {
	_, creds, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer creds.Close()

	if err := creds.Clear(ctx); err != nil {
		return fmt.Errorf("clearing credential: %w", err)
	}
	fmt.Println("Signed out.")
	return nil
}

func runChat(ctx context.Context) error {
	cfg, creds, err := openStore(ctx)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)
	c := client.New(cfg, creds, logger)
	defer c.Close()

	ui := &terminal{client: c, out: os.Stdout}
	c.OnSignInRequired(ui.signInRequired)
	c.Conversations().OnAppend(ui.incoming)
	c.Channel().OnStateChange(ui.stateChanged)

	identity, err := c.Start(ctx)
	if errors.Is(err, session.ErrAuthExpired) || ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return err
	}
	ui.self = identity

	bold := color.New(color.Bold)
	bold.Printf("tutorchat: signed in as %s\n", identity.DisplayName)
	fmt.Printf("%d peers, %d conversations. /help for commands. Ctrl+C to quit.\n\n",
		len(c.Directory().Peers()), len(c.Conversations().Conversations()))

	if err := ui.run(ctx, os.Stdin); err != nil {
		return err
	}
	fmt.Println("\nGoodbye!")
	return nil
}

type terminal struct {
	client *client.Client
	out    io.Writer
	self   model.Identity
}

func (t *terminal) signInRequired() {
	color.Yellow("Not signed in. Run `tutorchat token <value>` or set TUTORCHAT_TOKEN.")
}

func (t *terminal) stateChanged(state model.ConnectionState) {
	if state == model.Disconnected {
		fmt.Fprintln(t.out, color.HiBlackString("[channel %s]", state))
	}
}

func (t *terminal) incoming(msg model.Message) {
	if msg.SenderID == t.self.ID {
		return
	}
	fmt.Fprintf(t.out, "\r%s %s\n> ", color.BlueString("%s:", t.senderName(msg.SenderID)), msg.Content)
}

func (t *terminal) senderName(id string) string {
	if id == t.self.ID {
		return "you"
	}
	if p, ok := t.client.Directory().Peer(id); ok && p.DisplayName != "" {
		return p.DisplayName
	}
	return id
}

func (t *terminal) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(t.out, t.prompt())

		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if !strings.HasPrefix(input, "/") {
			t.send(ctx, input)
			continue
		}

		cmd, arg, _ := strings.Cut(input, " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "/quit", "/exit", "/q":
			return nil
		case "/peers":
			t.listPeers()
		case "/chats":
			t.listConversations()
		case "/open":
			t.open(ctx, arg)
		case "/start":
			t.start(ctx, arg)
		case "/history":
			t.history()
		case "/refresh":
			t.client.Refresh(ctx)
			t.listConversations()
		case "/status":
			t.status()
		case "/reconnect":
			if _, err := t.client.Start(ctx); err != nil {
				t.errorf("%v", err)
			}
		case "/logout":
			if err := t.client.Logout(ctx); err != nil {
				t.errorf("%v", err)
			}
			return nil
		case "/help":
			printHelp(t.out)
		default:
			t.errorf("unknown command %s", cmd)
		}
		fmt.Fprintln(t.out)
	}
}

func (t *terminal) prompt() string {
	active := t.client.Conversations().Active()
	if active == "" {
		return "> "
	}
	label := active
	if conv, ok := t.client.Conversations().Conversation(active); ok {
		label = conv.LabelFor(t.self.ID)
	}
	return fmt.Sprintf("[%s]> ", label)
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  /peers          List people you can message")
	fmt.Fprintln(w, "  /chats          List your conversations")
	fmt.Fprintln(w, "  /open <n|id>    Open a conversation by number or id")
	fmt.Fprintln(w, "  /start <n|id>   Start a conversation with a peer by number or id")
	fmt.Fprintln(w, "  /history        Show the open conversation")
	fmt.Fprintln(w, "  /refresh        Reload peers and conversations")
	fmt.Fprintln(w, "  /status         Show the channel state")
	fmt.Fprintln(w, "  /reconnect      Re-check the session and restart a stopped channel")
	fmt.Fprintln(w, "  /logout         Sign out and exit")
	fmt.Fprintln(w, "  /help           Show this help")
	fmt.Fprintln(w, "  /quit           Exit")
	fmt.Fprintln(w, "Anything else is sent to the open conversation.")
}

func (t *terminal) errorf(format string, args ...any) {
	fmt.Fprintln(t.out, color.RedString("[error] "+format, args...))
}

func (t *terminal) listPeers() {
	peers := t.client.Directory().Peers()
	if len(peers) == 0 {
		fmt.Fprintln(t.out, "No peers")
		return
	}
	for i, p := range peers {
		fmt.Fprintf(t.out, "  %2d. %s %s\n", i+1, p.DisplayName, color.HiBlackString(p.ID))
	}
}

func (t *terminal) listConversations() {
	convs := t.client.Conversations().Conversations()
	if len(convs) == 0 {
		fmt.Fprintln(t.out, "No conversations. /start <peer> to begin one.")
		return
	}
	active := t.client.Conversations().Active()
	for i, c := range convs {
		marker := " "
		if c.ID == active {
			marker = "*"
		}
		fmt.Fprintf(t.out, " %s%2d. %s %s\n", marker, i+1, c.LabelFor(t.self.ID), color.HiBlackString(c.ID))
	}
}

// pick resolves a 1-based list position or returns arg unchanged as an id.
func pick[T any](arg string, items []T, id func(T) string) string {
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(items) {
		return id(items[n-1])
	}
	return arg
}

func (t *terminal) open(ctx context.Context, arg string) {
	if arg == "" {
		t.errorf("usage: /open <n|id>")
		return
	}
	convs := t.client.Conversations().Conversations()
	chatID := pick(arg, convs, func(c model.Conversation) string { return c.ID })

	if err := t.client.Conversations().Select(ctx, chatID); err != nil {
		t.errorf("%s", dispatch.Reason(err))
	}
	t.history()
}

func (t *terminal) start(ctx context.Context, arg string) {
	if arg == "" {
		t.errorf("usage: /start <n|id>")
		return
	}
	peers := t.client.Directory().Peers()
	peerID := pick(arg, peers, func(p model.Peer) string { return p.ID })

	conv, err := t.client.Conversations().StartConversation(ctx, peerID)
	if err != nil && conv.ID == "" {
		t.errorf("%s", dispatch.Reason(err))
		return
	}
	fmt.Fprintf(t.out, "Opened %s\n", conv.LabelFor(t.self.ID))
	t.history()
}

func (t *terminal) history() {
	store := t.client.Conversations()
	if store.Active() == "" {
		fmt.Fprintln(t.out, "No conversation open. Use /open or /start first.")
		return
	}
	msgs := store.Messages()
	if len(msgs) == 0 {
		fmt.Fprintln(t.out, color.HiBlackString("(no messages yet)"))
		return
	}
	fmt.Fprintln(t.out, strings.Repeat("-", 60))
	for _, m := range msgs {
		name := t.senderName(m.SenderID)
		stamp := color.HiBlackString(m.CreatedAt.Local().Format("15:04"))
		if m.SenderID == t.self.ID {
			fmt.Fprintf(t.out, "%s %s %s\n", stamp, color.GreenString("%s:", name), m.Content)
		} else {
			fmt.Fprintf(t.out, "%s %s %s\n", stamp, color.BlueString("%s:", name), m.Content)
		}
	}
	fmt.Fprintln(t.out, strings.Repeat("-", 60))
}

func (t *terminal) status() {
	fmt.Fprintf(t.out, "Signed in as %s (%s)\n", t.self.DisplayName, t.self.ID)
	ch := t.client.Channel()
	if ch.Running() {
		fmt.Fprintf(t.out, "Channel: %s\n", ch.State())
	} else {
		fmt.Fprintf(t.out, "Channel: %s (stopped, /reconnect to retry)\n", ch.State())
	}
	if active := t.client.Conversations().Active(); active != "" {
		fmt.Fprintf(t.out, "Open conversation: %s\n", active)
	}
}

func (t *terminal) send(ctx context.Context, text string) {
	composer := t.client.Composer()
	composer.SetDraft(text)
	if _, err := composer.Submit(ctx); err != nil {
		t.errorf("not sent: %s", dispatch.Reason(err))
	}
}

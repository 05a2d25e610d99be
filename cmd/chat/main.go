// Command chat is a terminal client for the chat service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"chatsync/internal/analytics"
	"chatsync/internal/config"
	"chatsync/internal/gateway"
	"chatsync/internal/model"
	"chatsync/internal/storage/bolt"
	"chatsync/internal/store"
	"chatsync/internal/stream"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func statePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "state.db"
	}
	return filepath.Join(dir, "chatsync", "state.db")
}

func usage() {
	fmt.Fprintf(os.Stderr, `chat client
Usage:
  chat [-config file] <cmd> [args]

Commands:
  version
  signup     -email <e> -fullname <n> -password <p> -workspace <w>
  signin     -email <e> -password <p>
  logout
  whoami
  channels                                 (group and public channels)
  dms                                      (direct conversations)
  history    -chat <id>
  send       -chat <id> -m <text> [-files a.png,b.png]
  upload     -files a.png,b.png
  watch      [-chat <id>]                  (print incoming messages, Ctrl-C to quit)
`)
	os.Exit(2)
}

// main wires config, durable storage, gateway, analytics and the store, then
// dispatches the subcommand.
func main() {
	cfgPath := flag.String("config", config.DefaultPath(), "config file (YAML)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	if cmd == "version" {
		fmt.Printf("chat %s (%s)\n", version, buildDate)
		return
	}

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fail(err)
	}

	db, err := bolt.Open(statePath())
	if err != nil {
		fail(err)
	}
	defer func() { _ = db.Close() }()

	gw := gateway.New(cfg.Server.Chat, logger)
	sink := analytics.New(cfg.Server.Analytics, version, gw.Token, logger)
	defer sink.Close()

	newStream := func(ctx context.Context, tok string, s stream.Sink) store.StreamHandle {
		return stream.Open(ctx, cfg.Server.Notification, tok, s, logger)
	}
	st := store.New(gw, db, sink, newStream, logger)
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {

	case "signup":
		fs := flag.NewFlagSet("signup", flag.ExitOnError)
		email := fs.String("email", "", "email")
		fullname := fs.String("fullname", "", "full name")
		password := fs.String("password", "", "password")
		workspace := fs.String("workspace", "", "workspace name")
		_ = fs.Parse(args)
		if *email == "" || *fullname == "" || *password == "" || *workspace == "" {
			fmt.Fprintln(os.Stderr, "need -email -fullname -password -workspace")
			os.Exit(1)
		}
		u, err := st.Signup(ctx, *email, *fullname, *password, *workspace)
		if err != nil {
			fail(err)
		}
		printJSON(u)

	case "signin":
		fs := flag.NewFlagSet("signin", flag.ExitOnError)
		email := fs.String("email", "", "email")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)
		if *email == "" || *password == "" {
			fmt.Fprintln(os.Stderr, "need -email and -password")
			os.Exit(1)
		}
		u, err := st.Signin(ctx, *email, *password)
		if err != nil {
			fail(err)
		}
		printJSON(u)

	case "logout":
		if err := st.Restore(ctx); err != nil {
			fail(err)
		}
		if err := st.Logout(ctx); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "whoami":
		resume(ctx, st)
		u, ok := st.User()
		if !ok {
			fail(fmt.Errorf("no session (signin first)"))
		}
		printJSON(struct {
			User      model.User      `json:"user"`
			Workspace model.Workspace `json:"workspace"`
		}{u, st.Workspace()})

	case "channels":
		resume(ctx, st)
		printJSON(st.GroupChannels())

	case "dms":
		resume(ctx, st)
		printJSON(st.DirectChannels())

	case "history":
		fs := flag.NewFlagSet("history", flag.ExitOnError)
		chatID := fs.Int64("chat", 0, "channel id")
		_ = fs.Parse(args)
		if *chatID == 0 {
			fmt.Fprintln(os.Stderr, "need -chat")
			os.Exit(1)
		}
		resume(ctx, st)
		msgs, err := st.FetchMessages(ctx, *chatID)
		if err != nil {
			fail(err)
		}
		for _, m := range msgs {
			printMessage(st, m)
		}

	case "send":
		fs := flag.NewFlagSet("send", flag.ExitOnError)
		chatID := fs.Int64("chat", 0, "channel id")
		text := fs.String("m", "", "message text")
		files := fs.String("files", "", "comma-separated file paths to attach")
		_ = fs.Parse(args)
		if *chatID == 0 || (*text == "" && *files == "") {
			fmt.Fprintln(os.Stderr, "need -chat and -m (or -files)")
			os.Exit(1)
		}
		resume(ctx, st)

		var paths []string
		if *files != "" {
			ups, err := st.UploadFiles(ctx, readFiles(*files))
			if err != nil {
				fail(err)
			}
			for _, up := range ups {
				paths = append(paths, up.Path)
			}
		}
		if _, err := st.SendMessage(ctx, *chatID, *text, paths); err != nil {
			fail(err)
		}
		fmt.Println("sent (echo arrives over the stream)")

	case "upload":
		fs := flag.NewFlagSet("upload", flag.ExitOnError)
		files := fs.String("files", "", "comma-separated file paths")
		_ = fs.Parse(args)
		if *files == "" {
			fmt.Fprintln(os.Stderr, "need -files")
			os.Exit(1)
		}
		resume(ctx, st)
		ups, err := st.UploadFiles(ctx, readFiles(*files))
		if err != nil {
			fail(err)
		}
		printJSON(ups)

	case "watch":
		fs := flag.NewFlagSet("watch", flag.ExitOnError)
		chatID := fs.Int64("chat", 0, "channel id to focus (optional)")
		_ = fs.Parse(args)

		st.SetMessageListener(func(m model.Message) { printMessage(st, m) })
		resume(ctx, st)
		sink.AppStart()

		if *chatID != 0 {
			if err := st.SetActiveChannel(ctx, *chatID); err != nil {
				fail(err)
			}
			sink.Navigation("/", fmt.Sprintf("/chats/%d", *chatID))
			msgs, err := st.FetchMessages(ctx, *chatID)
			if err != nil {
				logger.Warn("history unavailable", zap.Error(err))
			}
			for _, m := range msgs {
				printMessage(st, m)
			}
		}

		fmt.Fprintln(os.Stderr, "watching... Ctrl-C to quit")
		<-ctx.Done()
		sink.AppExit(0)

	default:
		usage()
	}
}

// resume rebuilds session state from the durable snapshot and insists on a token.
func resume(ctx context.Context, st *store.Store) {
	if err := st.Restore(ctx); err != nil {
		fail(err)
	}
	if !st.IsAuthenticated() {
		fail(fmt.Errorf("no session (signin first)"))
	}
}

func readFiles(list string) []gateway.UploadFile {
	var out []gateway.UploadFile
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b, err := os.ReadFile(p)
		if err != nil {
			fail(err)
		}
		out = append(out, gateway.UploadFile{Name: filepath.Base(p), Content: b})
	}
	return out
}

func printMessage(st *store.Store, m model.Message) {
	sender := fmt.Sprintf("user %d", m.SenderID)
	if u, ok := st.UserByID(m.SenderID); ok {
		sender = u.Fullname
	}
	line := m.Content
	if len(m.Files) > 0 {
		line = fmt.Sprintf("%s [%d file(s)]", line, len(m.Files))
	}
	fmt.Printf("[%s] #%d %s: %s\n", m.FormattedCreatedAt, m.ChatID, sender, line)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

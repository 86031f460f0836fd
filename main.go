// Package main provides an interactive terminal client for chatting with
// agents on a cagent runtime.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/agentchat/agentchat/internal/adapter/cagent"
	"github.com/agentchat/agentchat/internal/archive"
	"github.com/agentchat/agentchat/internal/config"
	"github.com/agentchat/agentchat/internal/domain"
	"github.com/agentchat/agentchat/internal/policy"
	"github.com/agentchat/agentchat/internal/relay"
	"github.com/agentchat/agentchat/internal/service"
)

func main() {
	apiURL := flag.String("api", "", "agent runtime base URL (overrides CAGENT_API_BASE_URL)")
	agentName := flag.String("agent", "", "agent to select on startup")
	noRelay := flag.Bool("no-relay", false, "disable the upload/WebSocket relay server")
	flag.Parse()

	log.SetFlags(log.Ltime)

	// Load configuration
	cfg := config.Load()
	if *apiURL != "" {
		cfg.APIBaseURL = *apiURL
	}
	if cfg.Debug {
		log.SetFlags(log.Ltime | log.Lshortfile)
	}

	log.Printf("Starting agentchat...")
	log.Printf("Runtime API: %s", cfg.APIBaseURL)
	log.Printf("Archive: %s", cfg.ArchiveDSN)

	// Initialize transcript archive
	arch, err := archive.New(cfg.ArchiveDSN)
	if err != nil {
		log.Fatalf("Failed to open archive: %v", err)
	}
	defer arch.Close()

	// Initialize policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngineFromFile(ctx, cfg.PolicyFile)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize runtime client and service
	client := cagent.NewClient(cfg.APIBaseURL, cfg.StreamTimeout)
	svc := service.New(client, arch, policyEngine, cfg)

	// Print stream deltas as they arrive
	svc.SetEventSink(renderEvent)

	// Start relay server (upload staging + state mirror)
	if !*noRelay {
		relayServer := relay.NewServer(cfg.UploadDir)
		svc.SetNotifier(relayServer)
		go func() {
			if err := relayServer.Start(cfg.RelayPort); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start relay server: %v", err)
			}
		}()
		log.Printf("Relay server started on port %d", cfg.RelayPort)
	}

	// Load agents and select one
	agents, err := svc.LoadAgents(ctx)
	if err != nil {
		log.Fatalf("Failed to load agents: %v", err)
	}
	if len(agents) == 0 {
		log.Fatalf("No agents available on the runtime")
	}

	selected := agents[0].Name
	if *agentName != "" {
		selected = *agentName
	}
	if err := svc.SelectAgent(selected); err != nil {
		log.Fatalf("Failed to select agent %q: %v", selected, err)
	}

	if _, err := svc.NewSession(ctx, &domain.CreateSessionRequest{}); err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}

	fmt.Printf("Chatting with %q. Session: %s\n", selected, svc.CurrentSession().ID)
	fmt.Println("Type a message and press Enter to send. /help lists commands.")
	fmt.Println()

	// Handle Ctrl+C
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		fmt.Println("\nInterrupted")
		svc.StopStreaming()
		os.Exit(0)
	}()

	// Read user input
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := runCommand(ctx, svc, input); quit {
				fmt.Println("Bye!")
				return
			}
			continue
		}

		if err := svc.SendMessage(ctx, input); err != nil {
			log.Printf("Send error: %v", err)
		}
	}
}

// runCommand dispatches a slash command and reports whether to exit.
func runCommand(ctx context.Context, svc *service.Service, input string) bool {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit":
		svc.StopStreaming()
		return true

	case "/help":
		printHelp()

	case "/agents":
		agents, err := svc.LoadAgents(ctx)
		if err != nil {
			log.Printf("Failed to load agents: %v", err)
			break
		}
		for _, a := range agents {
			fmt.Printf("  %s  %s\n", a.Name, a.Description)
		}

	case "/agent":
		if len(args) != 1 {
			fmt.Println("usage: /agent <name>")
			break
		}
		if err := svc.SelectAgent(args[0]); err != nil {
			log.Printf("Failed to select agent: %v", err)
			break
		}
		if _, err := svc.NewSession(ctx, &domain.CreateSessionRequest{}); err != nil {
			log.Printf("Failed to create session: %v", err)
			break
		}
		fmt.Printf("Now chatting with %q\n", args[0])

	case "/import":
		if len(args) != 1 {
			fmt.Println("usage: /import <staged-file-path>")
			break
		}
		resp, err := svc.ImportAgent(ctx, args[0])
		if err != nil {
			log.Printf("Failed to import agent: %v", err)
			break
		}
		fmt.Printf("Imported %s -> %s\n", resp.OriginalPath, resp.TargetPath)

	case "/export":
		resp, err := svc.ExportAgents(ctx)
		if err != nil {
			log.Printf("Failed to export agents: %v", err)
			break
		}
		fmt.Printf("Exported agents to %s\n", resp.ZipPath)

	case "/pull":
		if len(args) != 1 {
			fmt.Println("usage: /pull <registry-ref>")
			break
		}
		agent, err := svc.PullAgent(ctx, args[0])
		if err != nil {
			log.Printf("Failed to pull agent: %v", err)
			break
		}
		fmt.Printf("Pulled %s\n", agent.Name)

	case "/push":
		if len(args) < 1 || len(args) > 2 {
			fmt.Println("usage: /push <file-path> [tag]")
			break
		}
		req := &domain.PushAgentRequest{Filepath: args[0]}
		if len(args) == 2 {
			req.Tag = args[1]
		}
		resp, err := svc.PushAgent(ctx, req)
		if err != nil {
			log.Printf("Failed to push agent: %v", err)
			break
		}
		fmt.Printf("Pushed %s as %s (%s)\n", resp.Filepath, resp.Tag, resp.Digest)

	case "/sessions":
		sessions, err := svc.LoadSessions(ctx)
		if err != nil {
			log.Printf("Failed to load sessions: %v", err)
			break
		}
		for _, sess := range sessions {
			title := sess.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("  %s  %s\n", sess.ID, title)
		}

	case "/history":
		if len(args) == 0 {
			records, err := svc.ArchivedSessions(ctx)
			if err != nil {
				log.Printf("Failed to list archived sessions: %v", err)
				break
			}
			for _, rec := range records {
				title := rec.Title
				if title == "" {
					title = "(untitled)"
				}
				fmt.Printf("  %s  %s  %s\n", rec.ID, rec.AgentName, title)
			}
			break
		}
		msgs, err := svc.ArchivedMessages(ctx, args[0])
		if err != nil {
			log.Printf("Failed to read archived transcript: %v", err)
			break
		}
		for _, msg := range msgs {
			fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
		}

	case "/new":
		if _, err := svc.NewSession(ctx, &domain.CreateSessionRequest{}); err != nil {
			log.Printf("Failed to create session: %v", err)
			break
		}
		fmt.Printf("New session: %s\n", svc.CurrentSession().ID)

	case "/open":
		if len(args) != 1 {
			fmt.Println("usage: /open <session-id>")
			break
		}
		if _, err := svc.SelectSession(ctx, args[0]); err != nil {
			log.Printf("Failed to open session: %v", err)
			break
		}
		for _, msg := range svc.Messages() {
			fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
		}

	case "/delete":
		if len(args) != 1 {
			fmt.Println("usage: /delete <session-id>")
			break
		}
		if err := svc.DeleteSession(ctx, args[0]); err != nil {
			log.Printf("Failed to delete session: %v", err)
		}

	case "/approve":
		if err := svc.ApproveTool(ctx); err != nil {
			log.Printf("Approve failed: %v", err)
		}

	case "/approve-all":
		if err := svc.ApproveAllTools(ctx); err != nil {
			log.Printf("Approve-all failed: %v", err)
		}

	case "/deny":
		if err := svc.DenyTool(ctx); err != nil {
			log.Printf("Deny failed: %v", err)
		}

	case "/oauth-approve":
		if err := svc.ApproveOAuth(ctx); err != nil {
			log.Printf("OAuth approve failed: %v", err)
		}

	case "/oauth-deny":
		if err := svc.DenyOAuth(ctx); err != nil {
			log.Printf("OAuth deny failed: %v", err)
		}

	case "/stop":
		svc.StopStreaming()
		fmt.Println("Stopped")

	case "/usage":
		usage := svc.Usage()
		fmt.Printf("input=%d output=%d context=%d\n",
			usage.InputTokens, usage.OutputTokens, usage.ContextLength)

	case "/yaml":
		if len(args) != 1 {
			fmt.Println("usage: /yaml <agent-id>")
			break
		}
		content, err := svc.AgentYAML(ctx, args[0])
		if err != nil {
			log.Printf("Failed to fetch agent yaml: %v", err)
			break
		}
		fmt.Println(content)

	default:
		fmt.Printf("Unknown command: %s (/help lists commands)\n", cmd)
	}
	return false
}

// renderEvent prints stream deltas to stdout. It runs on the stream
// goroutine, so it only writes, never calls back into the service.
func renderEvent(ev domain.StreamEvent) {
	switch e := ev.(type) {
	case *domain.ReasoningChunk:
		fmt.Print(e.Content)
	case *domain.AnswerChunk:
		fmt.Print(e.Content)
	case *domain.ToolConfirmation:
		if e.ToolCall != nil {
			fmt.Printf("\n[tool approval required] %s(%s)  /approve, /approve-all or /deny\n",
				e.ToolCall.Function.Name, e.ToolCall.Function.Arguments)
		}
	case *domain.ToolResponse:
		if e.ToolCall != nil {
			fmt.Printf("\n[tool] %s done\n", e.ToolCall.Function.Name)
		}
	case *domain.Elicitation:
		if req, ok := e.OAuthConsent(); ok {
			fmt.Printf("\n[oauth consent required] %s  /oauth-approve or /oauth-deny\n", req.ServerURL)
		}
	case *domain.SessionTitle:
		fmt.Printf("\n[title] %s\n", e.Title)
	case *domain.StreamStopped:
		fmt.Println()
	}
}

func printHelp() {
	fmt.Println(`Commands:
  /agents              list available agents
  /agent <name>        switch agent (starts a new session)
  /import <path>       import a staged agent file into the runtime
  /export              export all agents to an archive on the runtime host
  /pull <ref>          pull an agent from a registry
  /push <path> [tag]   push a local agent file to a registry
  /sessions            list sessions on the runtime
  /new                 start a new session
  /open <id>           open a session and print its history
  /delete <id>         delete a session
  /history [id]        list archived sessions, or print one archived transcript
  /approve             approve the pending tool call
  /approve-all         approve this and all later tool calls
  /deny                deny the pending tool call
  /oauth-approve       accept the pending OAuth consent
  /oauth-deny          decline the pending OAuth consent
  /stop                cancel the in-flight response
  /usage               show token usage for this session
  /yaml <agent-id>     print an agent's YAML definition
  /quit                exit`)
}

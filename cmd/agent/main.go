// Command agent is a headless intercom client: it signs in, listens
// for incoming private calls and handles them according to its answer
// policy, and can place one outgoing call at startup. It drives the
// same call state machines a mobile client would, against a stub voice
// module, which makes it useful for soak-testing the signaling service.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"intercom-platform/internal/call"
	"intercom-platform/internal/config"
	"intercom-platform/internal/signaling"
	"intercom-platform/internal/voice"
	"intercom-platform/pkg/logger"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAgent()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	client, err := signaling.NewClient(signaling.ClientConfig{BaseURL: cfg.Agent.APIBaseURL})
	if err != nil {
		log.Error("signaling client init failed", "err", err)
		os.Exit(1)
	}
	sess, err := client.Login(rootCtx, cfg.Agent.Username, cfg.Agent.Password)
	if err != nil {
		log.Error("login failed", "err", err)
		os.Exit(1)
	}
	userID := sess.User.ID
	log.Info("signed in", "user_id", userID, "username", sess.User.Username)

	engine := voice.NewBridge(voice.NewStubModule(), voice.BridgeConfig{AppKey: cfg.Voice.AppKey})

	a := &agent{
		log:     log,
		client:  client,
		engine:  engine,
		userID:  userID,
		policy:  cfg.Agent.AnswerPolicy,
		timings: call.Timings{},
	}
	a.notify = call.NotifierFunc(func(o call.Outcome, detail string) {
		log.Info("call resolved", "outcome", o, "detail", detail)
	})

	a.listener = call.NewListener(client, userID, a.timings, func(inv signaling.Invitation) {
		go a.handleIncoming(rootCtx, inv)
	}, log)
	a.listener.Start()
	defer a.listener.Stop()

	if cfg.Agent.CallUserID > 0 {
		go a.placeCall(rootCtx, cfg.Agent.CallUserID)
	}

	<-rootCtx.Done()
	log.Info("agent shutting down")
}

type agent struct {
	log      *slog.Logger
	client   *signaling.Client
	engine   voice.Engine
	userID   int
	policy   string
	timings  call.Timings
	notify   call.Notifier
	listener *call.Listener
}

func (a *agent) handleIncoming(ctx context.Context, inv signaling.Invitation) {
	// The listener paused itself on detection; polling resumes once
	// this call is fully resolved.
	defer a.listener.Resume()

	log := a.log.With("invitation_id", inv.ID, "caller", inv.CallerName)

	if a.policy == "ignore" {
		log.Info("ignoring incoming call per answer policy")
		return
	}

	decisions := make(chan call.Decision, 1)
	switch a.policy {
	case "accept":
		decisions <- call.DecisionAccept
	default:
		decisions <- call.DecisionReject
	}

	ringer := call.NewRinger(a.client, a.userID, a.timings, a.notify, a.log)
	res, err := ringer.Ring(ctx, inv, decisions)
	if err != nil || res.Outcome != call.OutcomeAccepted {
		return
	}
	a.runSession(ctx, res.Invitation, call.RoleReceiver)
}

func (a *agent) placeCall(ctx context.Context, receiverID int) {
	defer a.listener.Resume()
	a.listener.Pause()

	out := call.NewOutgoing(a.client, a.userID, a.timings, a.notify, a.log)
	res, err := out.Call(ctx, receiverID)
	if err != nil {
		a.log.Error("outgoing call failed", "receiver_id", receiverID, "err", err)
		return
	}
	if res.Outcome != call.OutcomeAccepted {
		return
	}
	a.runSession(ctx, res.Invitation, call.RoleCaller)
}

// runSession joins the voice channel, watches its health, and stays in
// the call until the monitor declares it dead or the agent shuts down.
func (a *agent) runSession(ctx context.Context, inv signaling.Invitation, role call.Role) {
	log := a.log.With("invitation_id", inv.ID, "channel", inv.ChannelName)

	session := call.NewSession(a.engine, a.client, a.timings, a.notify, a.log)
	active, err := session.Start(ctx, inv, a.userID, role)
	if err != nil {
		log.Error("session start failed", "err", err)
		return
	}

	joined, err := active.WaitForPeer(ctx)
	if err != nil {
		active.End(ctx, "shutdown")
		return
	}
	if !joined {
		// A human gets a keep-waiting prompt here; the agent gives up.
		log.Info("peer never joined, ending call")
		active.End(ctx, "peer_never_joined")
		return
	}

	downc := make(chan call.DownReason, 1)
	monitor := call.NewMonitor(a.engine, a.client, a.timings, a.log)
	monitor.Start(active.Channel, inv.ID, a.userID, func(r call.DownReason) { downc <- r })
	active.SetMonitorStop(monitor.Stop)

	select {
	case reason := <-downc:
		log.Info("call lost", "reason", reason)
		active.End(context.Background(), string(reason))
		a.notify.Notify(call.OutcomeConnectionLost, string(reason))
	case <-ctx.Done():
		active.End(context.Background(), "shutdown")
	}
}

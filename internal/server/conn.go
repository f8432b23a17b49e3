package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/battlecalc/internal/calc"
	"github.com/lawnchairsociety/battlecalc/internal/flood"
	"github.com/lawnchairsociety/battlecalc/internal/ruleset"
	"github.com/lawnchairsociety/battlecalc/internal/scenario"
	"github.com/lawnchairsociety/battlecalc/internal/snapshot"
)

const writeTimeout = 10 * time.Second

// Conn is one websocket client with its own calculator session.
type Conn struct {
	srv     *Server
	ws      *websocket.Conn
	ip      string
	log     *slog.Logger
	session *calc.Session
	flood   *flood.Tracker

	writeMu sync.Mutex

	// Owned by the read loop.
	authed   bool
	runs     int
	rules    *ruleset.Ruleset
	scenario *scenario.Scenario

	active atomic.Bool
	runWG  sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func newConn(srv *Server, ws *websocket.Conn, ip string) *Conn {
	log := srv.log.With("client_ip", ip)
	opts := []calc.Option{
		calc.WithWorkers(srv.cfg.Calculator.WorkerCount()),
		calc.WithLogger(log),
	}
	if seed := srv.cfg.Calculator.Seed; seed != 0 {
		opts = append(opts, calc.WithSeed(seed))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		srv:     srv,
		ws:      ws,
		ip:      ip,
		log:     log,
		session: calc.New(srv.engine, opts...),
		flood:   flood.NewTracker(srv.cfg.Flood),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// serve reads messages until the client goes away.
func (c *Conn) serve() {
	defer func() {
		c.cancel()
		c.session.Shutdown()
		c.runWG.Wait()
		c.ws.Close()
		c.log.Info("client disconnected")
	}()
	c.log.Info("client connected")

	c.ws.SetReadLimit(c.srv.cfg.Server.MaxMessageSize)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("websocket read failed", "error", err)
			}
			return
		}
		if r := c.flood.Check(); !r.Allowed {
			c.fail(CodeRateLimited, fmt.Sprintf("too many messages, retry in %s", r.Wait.Round(time.Second)))
			continue
		}
		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.fail(CodeBadRequest, "malformed message: "+err.Error())
			continue
		}
		c.handle(&msg)
	}
}

func (c *Conn) handle(msg *Inbound) {
	if msg.Type == MsgHello {
		c.hello(msg.AccessKey)
		return
	}
	if !c.authed {
		c.fail(CodeUnauthorized, "send hello first")
		return
	}
	switch msg.Type {
	case MsgConfigure:
		c.configure(msg.Scenario)
	case MsgPolicies:
		if err := c.session.SetPolicies(msg.Attacker, msg.Defender); err != nil {
			c.failErr(err)
			return
		}
		c.status()
	case MsgRun:
		c.run()
	case MsgCancel:
		if c.active.Load() {
			c.session.Cancel()
		}
	case MsgStatus:
		c.status()
	default:
		c.fail(CodeBadRequest, fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func (c *Conn) hello(key string) {
	limiter := c.srv.keyLimiter
	if locked, left := limiter.Locked(c.ip); locked {
		c.fail(CodeUnauthorized, fmt.Sprintf("too many attempts, retry in %s", left.Round(time.Second)))
		return
	}
	if !c.srv.cfg.Server.CheckAccessKey(key) {
		if locked, d := limiter.Fail(c.ip); locked {
			c.log.Warn("client locked out", "duration", d)
		}
		c.fail(CodeUnauthorized, "wrong access key")
		return
	}
	limiter.Succeed(c.ip)
	c.authed = true

	names, err := c.srv.rulesets.Names()
	if err != nil {
		c.log.Error("failed to list rulesets", "error", err)
	}
	c.send(Outbound{Type: MsgReady, Rulesets: names, Workers: c.session.WorkerCount()})
}

func (c *Conn) configure(sc *scenario.Scenario) {
	if sc == nil {
		c.fail(CodeBadRequest, "configure needs a scenario")
		return
	}
	if c.active.Load() {
		c.fail(CodeBusy, "a run is in progress")
		return
	}
	rs, err := c.srv.rulesets.Ruleset(sc.Ruleset)
	if err != nil {
		c.failErr(err)
		return
	}
	if err := c.session.SetSnapshot(snapshot.New(rs)); err != nil {
		c.failErr(err)
		return
	}
	c.rules, c.scenario = nil, nil

	req, err := sc.Apply(c.session, c.srv.cfg.Calculator.DefaultTrials)
	if err == nil {
		err = c.session.Configure(req)
	}
	if err != nil {
		c.failErr(err)
		return
	}
	c.rules, c.scenario = rs, sc
	c.send(Outbound{
		Type:    MsgConfigured,
		Ruleset: rs.Name,
		Trials:  c.session.TrialCount(),
		Workers: min(c.session.WorkerCount(), c.session.TrialCount()),
	})
}

func (c *Conn) run() {
	if limit := c.srv.cfg.Server.MaxRunsPerConnection; limit > 0 && c.runs >= limit {
		c.fail(CodeBadRequest, fmt.Sprintf("run limit of %d reached", limit))
		return
	}
	if !c.active.CompareAndSwap(false, true) {
		c.fail(CodeBusy, "a run is in progress")
		return
	}
	c.runs++
	rules, sc := c.rules, c.scenario

	c.runWG.Add(1)
	go func() {
		defer c.runWG.Done()

		agg, err := c.session.Run(c.ctx)
		c.active.Store(false)
		if err != nil {
			c.failErr(err)
			return
		}
		sum := agg.Summarize(rules.Catalog.Costs(), sc.Attacking.Counts(), sc.Defending.Counts())
		c.send(Outbound{Type: MsgResult, Ruleset: rules.Name, Result: &sum})
	}()
}

func (c *Conn) status() {
	st := &Status{
		Ready:   c.session.IsReady(),
		Running: c.active.Load(),
		Runs:    c.session.RunCount(),
		Trials:  c.session.TrialCount(),
		Workers: c.session.WorkerCount(),
	}
	if c.rules != nil {
		st.Ruleset = c.rules.Name
	}
	c.send(Outbound{Type: MsgStatus, Status: st})
}

func (c *Conn) failErr(err error) {
	c.fail(errorCode(err), err.Error())
}

func (c *Conn) fail(code, message string) {
	c.send(Outbound{Type: MsgError, Code: code, Message: message})
}

// send writes one message. Runs finish on their own goroutine, so writes
// are serialised.
func (c *Conn) send(msg Outbound) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteJSON(msg); err != nil {
		c.log.Debug("websocket write failed", "error", err)
	}
}

// close ends the connection from the server side.
func (c *Conn) close() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(time.Second))
	c.ws.Close()
}

package test

import (
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lawnchairsociety/battlecalc/internal/policy"
	"github.com/lawnchairsociety/battlecalc/internal/scenario"
	"github.com/lawnchairsociety/battlecalc/internal/server"
	"github.com/lawnchairsociety/battlecalc/internal/testclient"
)

const replyTimeout = 5 * time.Second

// runTimeout bounds a whole simulation run on the service side.
const runTimeout = 60 * time.Second

// lopsided is a battle the attacker should nearly always win.
func lopsided(trials int) *scenario.Scenario {
	return &scenario.Scenario{
		Attacker:  "Germans",
		Defender:  "Russians",
		Location:  "Karelia",
		Attacking: scenario.Forces{"Infantry": 8, "Tank": 4},
		Defending: scenario.Forces{"Infantry": 1},
		RetreatTo: []string{"Germany"},
		Trials:    trials,
	}
}

func connect(testName string, target Target) (*testclient.TestClient, error) {
	name := uniqueName("smoke")
	logAction(testName, "Connecting as "+name)
	return testclient.NewTestClient(name, target.URL, target.AccessKey)
}

// configure sends sc and waits for the configured reply.
func configure(testName string, c *testclient.TestClient, sc *scenario.Scenario) (server.Outbound, bool) {
	logAction(testName, "Configuring "+sc.Location)
	if err := c.Configure(sc); err != nil {
		return server.Outbound{}, false
	}
	msg, ok := c.WaitForAny([]string{server.MsgConfigured, server.MsgError}, replyTimeout)
	return msg, ok && msg.Type == server.MsgConfigured
}

// TestHello checks the handshake lists rulesets.
func TestHello(target Target) TestResult {
	const testName = "Hello"

	c, err := testclient.NewTestClientRaw(uniqueName("smoke"), target.URL)
	if err != nil {
		return fail(testName, "Failed to connect: %v", err)
	}
	defer c.Close()

	c.Send(server.Inbound{Type: server.MsgHello, AccessKey: target.AccessKey})
	msg, ok := c.WaitFor(server.MsgReady, replyTimeout)
	logResult(testName, ok, "ready received")
	if !ok {
		return fail(testName, "No ready message")
	}
	if len(msg.Rulesets) == 0 {
		return fail(testName, "Ready message lists no rulesets")
	}
	return pass(testName, "Ready with %d ruleset(s) and %d worker(s)", len(msg.Rulesets), msg.Workers)
}

// TestHelloRequired checks that commands before hello are refused.
func TestHelloRequired(target Target) TestResult {
	const testName = "Hello Required"

	c, err := testclient.NewTestClientRaw(uniqueName("smoke"), target.URL)
	if err != nil {
		return fail(testName, "Failed to connect: %v", err)
	}
	defer c.Close()

	c.Configure(lopsided(10))
	msg, ok := c.WaitFor(server.MsgError, replyTimeout)
	if !ok {
		return fail(testName, "Configure before hello was not refused")
	}
	if msg.Code != server.CodeUnauthorized {
		return fail(testName, "Expected code %s, got %s", server.CodeUnauthorized, msg.Code)
	}
	return pass(testName, "Refused with %s", msg.Code)
}

// TestConfigureAndRun runs a lopsided battle end to end.
func TestConfigureAndRun(target Target) TestResult {
	const testName = "Configure And Run"

	c, err := connect(testName, target)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer c.Close()

	msg, ok := configure(testName, c, lopsided(200))
	if !ok {
		return fail(testName, "Configure failed: %s %s", msg.Code, msg.Message)
	}
	if msg.Trials != 200 {
		return fail(testName, "Configured %d trials, want 200", msg.Trials)
	}

	logAction(testName, "Running")
	c.Run()
	msg, ok = c.WaitForAny([]string{server.MsgResult, server.MsgError}, runTimeout)
	if !ok || msg.Type != server.MsgResult || msg.Result == nil {
		return fail(testName, "No result: %s %s", msg.Code, msg.Message)
	}
	res := msg.Result
	logResult(testName, res.AttackerWinPercent > 90, "attacker win percent")
	if res.Trials != 200 {
		return fail(testName, "Result covers %d trials, want 200", res.Trials)
	}
	if res.AttackerWinPercent <= 90 {
		return fail(testName, "Attacker won %.1f%%, expected over 90%%", res.AttackerWinPercent)
	}
	return pass(testName, "Attacker won %.1f%% in %d ms", res.AttackerWinPercent, res.ElapsedMillis)
}

// TestInvalidConfiguration checks an unknown unit kind is rejected.
func TestInvalidConfiguration(target Target) TestResult {
	const testName = "Invalid Configuration"

	c, err := connect(testName, target)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer c.Close()

	sc := lopsided(10)
	sc.Attacking = scenario.Forces{"Zeppelin": 1}
	msg, ok := configure(testName, c, sc)
	if ok {
		return fail(testName, "Zeppelin was accepted")
	}
	if msg.Code != server.CodeInvalidConfiguration {
		return fail(testName, "Expected code %s, got %q", server.CodeInvalidConfiguration, msg.Code)
	}
	return pass(testName, "Rejected: %s", msg.Message)
}

// TestRunBeforeConfigure checks a run needs a scenario.
func TestRunBeforeConfigure(target Target) TestResult {
	const testName = "Run Before Configure"

	c, err := connect(testName, target)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer c.Close()

	c.Run()
	msg, ok := c.WaitFor(server.MsgError, replyTimeout)
	if !ok || msg.Code != server.CodeNotReady {
		return fail(testName, "Expected %s, got %q", server.CodeNotReady, msg.Code)
	}
	return pass(testName, "Refused with %s", msg.Code)
}

// TestPolicies checks a retreat policy ends battles after the first round.
func TestPolicies(target Target) TestResult {
	const testName = "Policies"

	c, err := connect(testName, target)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer c.Close()

	sc := lopsided(100)
	sc.Attacking = scenario.Forces{"Infantry": 3}
	sc.Defending = scenario.Forces{"Infantry": 3}
	if msg, ok := configure(testName, c, sc); !ok {
		return fail(testName, "Configure failed: %s %s", msg.Code, msg.Message)
	}

	c.SetPolicies(policy.Policy{RetreatAfterRound: 1}, policy.Policy{})
	msg, ok := c.WaitForAny([]string{server.MsgStatus, server.MsgError}, replyTimeout)
	if !ok || msg.Type != server.MsgStatus {
		return fail(testName, "Policies refused: %s %s", msg.Code, msg.Message)
	}

	c.Run()
	msg, ok = c.WaitForAny([]string{server.MsgResult, server.MsgError}, runTimeout)
	if !ok || msg.Result == nil {
		return fail(testName, "No result: %s %s", msg.Code, msg.Message)
	}
	if msg.Result.AverageRounds > 1 {
		return fail(testName, "Average rounds %.2f with retreat after round 1", msg.Result.AverageRounds)
	}
	return pass(testName, "Retreated %.1f%% of battles", msg.Result.RetreatPercent)
}

// TestCancel checks a long run can be cancelled and still reports.
func TestCancel(target Target) TestResult {
	const testName = "Cancel"

	c, err := connect(testName, target)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer c.Close()

	sc := lopsided(2_000_000)
	sc.Defending = scenario.Forces{"Infantry": 12}
	if msg, ok := configure(testName, c, sc); !ok {
		return fail(testName, "Configure failed: %s %s", msg.Code, msg.Message)
	}

	c.Run()
	time.Sleep(100 * time.Millisecond)
	logAction(testName, "Cancelling")
	c.Cancel()

	msg, ok := c.WaitForAny([]string{server.MsgResult, server.MsgError}, runTimeout)
	if !ok || msg.Result == nil {
		return fail(testName, "No result after cancel: %s %s", msg.Code, msg.Message)
	}
	if !msg.Result.Cancelled {
		return pass(testName, "Run finished before the cancel arrived (%d trials)", msg.Result.Trials)
	}
	return pass(testName, "Cancelled after %d trials", msg.Result.Trials)
}

// TestStatus checks the status reply tracks runs.
func TestStatus(target Target) TestResult {
	const testName = "Status"

	c, err := connect(testName, target)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer c.Close()

	if msg, ok := configure(testName, c, lopsided(20)); !ok {
		return fail(testName, "Configure failed: %s %s", msg.Code, msg.Message)
	}
	c.Run()
	if _, ok := c.WaitFor(server.MsgResult, runTimeout); !ok {
		return fail(testName, "No result")
	}

	c.Status()
	msg, ok := c.WaitFor(server.MsgStatus, replyTimeout)
	if !ok || msg.Status == nil {
		return fail(testName, "No status reply")
	}
	st := msg.Status
	if !st.Ready || st.Running || st.Runs != 1 || st.Trials != 20 {
		return fail(testName, "Unexpected status %+v", *st)
	}
	return pass(testName, "Ready, %d run(s) on %s", st.Runs, st.Ruleset)
}

// TestConcurrentClients runs several clients at once.
func TestConcurrentClients(target Target) TestResult {
	const testName = "Concurrent Clients"
	const clients = 3

	var g errgroup.Group
	for i := 0; i < clients; i++ {
		g.Go(func() error {
			if r := TestConfigureAndRun(target); !r.Passed {
				return &resultError{r}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fail(testName, "%v", err)
	}
	return pass(testName, "%d clients ran concurrently", clients)
}

type resultError struct{ r TestResult }

func (e *resultError) Error() string { return e.r.Name + ": " + e.r.Message }

package test

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// uniqueCounter provides unique client names within a single run
var uniqueCounter uint64

func uniqueName(base string) string {
	return fmt.Sprintf("%s-%d", base, atomic.AddUint64(&uniqueCounter, 1))
}

// Verbose controls whether detailed logging is shown during tests
var Verbose = false

// Target is the odds service under test.
type Target struct {
	URL       string
	AccessKey string
}

// TestResult represents the result of a test
type TestResult struct {
	Name    string
	Passed  bool
	Message string
}

func logAction(testName, action string) {
	if Verbose {
		fmt.Printf("  [%s] %s\n", testName, action)
	}
}

func logResult(testName string, success bool, detail string) {
	if Verbose {
		status := "OK"
		if !success {
			status = "FAIL"
		}
		fmt.Printf("  [%s] %s: %s\n", testName, status, detail)
	}
}

func pass(name, format string, args ...any) TestResult {
	return TestResult{Name: name, Passed: true, Message: fmt.Sprintf(format, args...)}
}

func fail(name, format string, args ...any) TestResult {
	return TestResult{Name: name, Passed: false, Message: fmt.Sprintf(format, args...)}
}

type testEntry struct {
	Name string
	Func func(Target) TestResult
}

func getAllTests() []testEntry {
	return []testEntry{
		{"Hello", TestHello},
		{"Hello Required", TestHelloRequired},
		{"Configure And Run", TestConfigureAndRun},
		{"Invalid Configuration", TestInvalidConfiguration},
		{"Run Before Configure", TestRunBeforeConfigure},
		{"Policies", TestPolicies},
		{"Cancel", TestCancel},
		{"Status", TestStatus},
		{"Concurrent Clients", TestConcurrentClients},
	}
}

// RunAllTests runs every smoke test in order.
func RunAllTests(target Target) []TestResult {
	return RunFilteredTests(target, "")
}

// GetTestNames returns the names of all available tests
func GetTestNames() []string {
	tests := getAllTests()
	names := make([]string, len(tests))
	for i, t := range tests {
		names[i] = t.Name
	}
	return names
}

// RunFilteredTests runs only tests whose names contain the filter string
// (case-insensitive). A filter equal to a test's full name runs just that test.
func RunFilteredTests(target Target, filter string) []TestResult {
	results := make([]TestResult, 0)
	for _, t := range filterTests(filter) {
		results = append(results, t.Func(target))
	}
	return results
}

func filterTests(filter string) []testEntry {
	var matched []testEntry
	for _, t := range getAllTests() {
		if strings.EqualFold(t.Name, filter) {
			return []testEntry{t}
		}
		if strings.Contains(strings.ToLower(t.Name), strings.ToLower(filter)) {
			matched = append(matched, t)
		}
	}
	return matched
}

// Failed counts the failed results.
func Failed(results []TestResult) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}

// PrintResults prints all test results in a formatted way
func PrintResults(results []TestResult) {
	failed := Failed(results)

	fmt.Println("============================================================")
	fmt.Println("Smoke Test Results")
	fmt.Println("============================================================")
	fmt.Println()

	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s: %s\n", status, r.Name, r.Message)
	}

	fmt.Println()
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Total: %d | Passed: %d | Failed: %d\n", len(results), len(results)-failed, failed)
	fmt.Println("------------------------------------------------------------")
}

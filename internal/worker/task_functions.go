// internal/worker/task_functions.go
package worker

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/progress"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Built-in task type keys
const (
	CalculatePiType    = "builtin.CalculatePi"
	GenerateReportType = "builtin.GenerateReport"
)

const (
	DefaultPiIterations = 1000
	DefaultPiStepDelay  = 100 * time.Millisecond
	DefaultReportDelay  = 10 * time.Second
	DefaultReportType   = "Generic"
)

// BuiltinOptions tunes the built-in task types
type BuiltinOptions struct {
	PiStepDelay time.Duration
	ReportDelay time.Duration
}

// RegisterBuiltins registers the built-in task types
func RegisterBuiltins(r *Registry, tracker *progress.Tracker, opts BuiltinOptions) error {
	if err := r.Register(CalculatePiType, &CalculatePi{Tracker: tracker, StepDelay: opts.PiStepDelay}); err != nil {
		return err
	}
	return r.Register(GenerateReportType, &GenerateReport{Delay: opts.ReportDelay})
}

// descriptionParam extracts the first word after "key=" in a task description
func descriptionParam(description, key string) (string, bool) {
	_, rest, found := strings.Cut(description, key+"=")
	if !found {
		return "", false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

// sleepCtx waits for d or until ctx is done
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CalculatePi approximates Pi with the Leibniz series and reports progress
type CalculatePi struct {
	Tracker   *progress.Tracker
	StepDelay time.Duration
}

func (c *CalculatePi) Name() string { return "Calculate Pi" }

func (c *CalculatePi) Description() string {
	return "Calculates the value of Pi using the Leibniz formula. " +
		"Set the number of iterations with 'iterations=X' in the task description. " +
		"Progress is tracked during execution."
}

func (c *CalculatePi) Run(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
	iterations := DefaultPiIterations
	if v, ok := descriptionParam(task.Description, "iterations"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			iterations = n
		}
	}

	tracker := c.Tracker
	if tracker == nil {
		tracker = progress.NewTracker()
	}
	// progress is only finalized on success
	data := tracker.Start(task.ID, int64(iterations))

	updateEvery := max(1, iterations/100)
	sum := 0.0
	for i := 0; i < iterations; i++ {
		term := float64(2*i + 1)
		if i%2 == 0 {
			sum += 1.0 / term
		} else {
			sum -= 1.0 / term
		}

		if i%updateEvery == 0 {
			data.SetCurrent(int64(i + 1))
			data.SetCurrentValue(4 * sum)

			if iterations >= 100 {
				if err := sleepCtx(ctx, c.StepDelay); err != nil {
					return nil, fmt.Errorf("pi calculation interrupted at iteration %d: %w", i+1, err)
				}
			}
		}
	}

	pi := 4 * sum
	data.SetFinalValue(pi)
	data.SetCurrentValue(pi)
	data.Finish()

	return models.NewTaskResult(
		"Result for "+task.Title,
		fmt.Sprintf("Calculated Pi to %d iterations. Result: %.10f", iterations, pi),
	), nil
}

// GenerateReport produces a simulated report of the type named in the description
type GenerateReport struct {
	Delay time.Duration
}

func (g *GenerateReport) Name() string { return "Generate Report" }

func (g *GenerateReport) Description() string {
	return "Generates various types of reports. Specify the report type in the description " +
		"using 'type=X' where X is Sales, Performance or any other value."
}

func (g *GenerateReport) Run(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
	if err := sleepCtx(ctx, g.Delay); err != nil {
		return nil, fmt.Errorf("report generation interrupted: %w", err)
	}

	reportType := DefaultReportType
	if v, ok := descriptionParam(task.Description, "type"); ok {
		reportType = cases.Title(language.English).String(v)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== %s Report ===\n", reportType)
	fmt.Fprintf(&b, "Report ID: %s\n", uuid.New().String()[:8])
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().Format(time.DateTime))
	fmt.Fprintf(&b, "Requested by User: %d\n", task.AssignedUserID)
	b.WriteString("\nReport Summary:\n")

	switch reportType {
	case "Sales":
		fmt.Fprintf(&b, "Total Sales: $%d\n", rand.Intn(10000))
		fmt.Fprintf(&b, "New Customers: %d\n", rand.Intn(100))
		fmt.Fprintf(&b, "Best Selling Product: Product-%d", rand.Intn(10))
	case "Performance":
		fmt.Fprintf(&b, "Average Response Time: %dms\n", rand.Intn(500))
		fmt.Fprintf(&b, "Server Uptime: 99.%d%%\n", rand.Intn(100))
		fmt.Fprintf(&b, "Error Rate: %.2f%%", rand.Float64()*2)
	default:
		fmt.Fprintf(&b, "Summary data for %s not available.", reportType)
	}

	return models.NewTaskResult("Report Generation Complete", b.String()), nil
}

package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/mapharvest/internal/model"
)

// ErrExit is returned when the user chooses to leave without running
// anything, or input ends before a choice is made.
var ErrExit = errors.New("exit requested")

// Choice is a main menu entry.
type Choice int

// Main menu entries.
const (
	ChoiceDemo   Choice = 1
	ChoiceCustom Choice = 2
	ChoiceExit   Choice = 3
)

// Prompter asks questions on out and reads answers line by line from in.
type Prompter struct {
	in              *bufio.Scanner
	out             io.Writer
	defaultLocation string
	defaultCount    int
}

// Option configures a Prompter.
type Option func(*Prompter)

// WithDefaultLocation sets the location used when the answer is empty.
func WithDefaultLocation(location string) Option {
	return func(p *Prompter) {
		p.defaultLocation = location
	}
}

// WithDefaultCount sets the result count used when the answer is empty or
// not a positive number.
func WithDefaultCount(n int) Option {
	return func(p *Prompter) {
		if n > 0 {
			p.defaultCount = n
		}
	}
}

// New creates a Prompter.
func New(in io.Reader, out io.Writer, opts ...Option) *Prompter {
	p := &Prompter{
		in:           bufio.NewScanner(in),
		out:          out,
		defaultCount: model.DefaultTargetCount,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tasks shows the main menu and returns the tasks to run: the demo list or
// the ones entered by the user. It returns ErrExit when the user exits.
func (p *Prompter) Tasks() ([]model.SearchTask, error) {
	choice, err := p.Menu()
	if err != nil {
		return nil, err
	}

	switch choice {
	case ChoiceDemo:
		return model.DemoTasks(), nil
	case ChoiceCustom:
		tasks, err := p.CollectTasks()
		if err != nil {
			return nil, err
		}
		if len(tasks) == 0 {
			p.printf("No searches entered.\n")
			return nil, ErrExit
		}
		return tasks, nil
	default:
		return nil, ErrExit
	}
}

// Menu asks for a main menu entry until a valid one is given.
func (p *Prompter) Menu() (Choice, error) {
	p.printf("\nChoose what to run:\n")
	p.printf("  1. Demo searches (%s)\n", demoSummary())
	p.printf("  2. Enter searches\n")
	p.printf("  3. Exit\n")

	for {
		answer, err := p.ask("\nChoice (1-3): ")
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= int(ChoiceDemo) && n <= int(ChoiceExit) {
			return Choice(n), nil
		}
		p.printf("Please enter 1, 2 or 3.\n")
	}
}

// CollectTasks asks for searches until an empty query is entered, the user
// declines to add another, or input ends.
func (p *Prompter) CollectTasks() ([]model.SearchTask, error) {
	var tasks []model.SearchTask

	for {
		p.printf("\nSearch #%d\n", len(tasks)+1)

		query, err := p.ask("What to search for? (e.g. furniture, lawyers): ")
		if errors.Is(err, ErrExit) {
			return tasks, nil
		}
		if err != nil {
			return nil, err
		}
		if query == "" {
			return tasks, nil
		}

		location, err := p.askDefault("Where? (default: "+p.defaultLocation+"): ", p.defaultLocation)
		if err != nil {
			return nil, err
		}

		countText, err := p.askDefault(fmt.Sprintf("How many results? (default: %d): ", p.defaultCount), "")
		if err != nil {
			return nil, err
		}
		count := p.defaultCount
		if n, convErr := strconv.Atoi(countText); convErr == nil && n > 0 {
			count = n
		} else if countText != "" {
			p.printf("Using %d results.\n", p.defaultCount)
		}

		task, err := model.NewSearchTask(query, location, count)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)

		more, err := p.askDefault("Add another search? (y/n): ", "n")
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(more, "y") && !strings.EqualFold(more, "yes") {
			return tasks, nil
		}
	}
}

// ask prints question and returns the trimmed answer. End of input is
// reported as ErrExit.
func (p *Prompter) ask(question string) (string, error) {
	p.printf("%s", question)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return "", ErrExit
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// askDefault is ask with a fallback for empty answers and end of input.
func (p *Prompter) askDefault(question, fallback string) (string, error) {
	answer, err := p.ask(question)
	if errors.Is(err, ErrExit) {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	if answer == "" {
		return fallback, nil
	}
	return answer, nil
}

func (p *Prompter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// demoSummary lists the demo queries.
func demoSummary() string {
	tasks := model.DemoTasks()
	queries := make([]string, len(tasks))
	for i, t := range tasks {
		queries[i] = t.Query
	}
	return strings.Join(queries, ", ")
}

package console

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gregLibert/mifare-session/pkg/mifare"
	"github.com/gregLibert/mifare-session/pkg/session"
	"github.com/gregLibert/mifare-session/pkg/tlv"
)

const menuRule = "============================================================="

// menu lists the actions in the order they are offered.
var menu = []struct {
	action session.Action
	label  string
}{
	{session.ActionRead, "read card"},
	{session.ActionPrintAll, "print all data"},
	{session.ActionPrintSector, "print single sector"},
	{session.ActionWrite, "write block interactively"},
	{session.ActionQuit, "quit"},
}

// DataType is what a write puts on the card.
type DataType int

const (
	DataUser DataType = iota
	DataZero
	DataRandom
)

// Address is how much of the card a write covers.
type Address int

const (
	AddressBlock Address = iota
	AddressSector
	AddressCard
)

// Prompter asks the operator questions over a line source.
type Prompter struct {
	in   *Lines
	out  io.Writer
	poll time.Duration
}

// NewPrompter prompts on out and reads answers from in.
func NewPrompter(in *Lines, out io.Writer, poll time.Duration) *Prompter {
	return &Prompter{in: in, out: out, poll: poll}
}

func (p *Prompter) ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.Next(ctx, p.poll)
	return strings.TrimSpace(line), err
}

// choose repeats prompt until the answer is one of choices, compared
// case-insensitively. The empty answer is valid only when listed.
func (p *Prompter) choose(ctx context.Context, prompt string, choices ...string) (string, error) {
	for {
		answer, err := p.ask(ctx, prompt)
		if err != nil {
			return "", err
		}
		answer = strings.ToUpper(answer)
		for _, c := range choices {
			if answer == c {
				return answer, nil
			}
		}
		fmt.Fprintf(p.out, "Invalid input. Please input: %s\n", strings.Join(choices, ", "))
	}
}

func (p *Prompter) number(ctx context.Context, prompt string, lo, hi int) (int, error) {
	for {
		answer, err := p.ask(ctx, fmt.Sprintf("%s (%d-%d): ", prompt, lo, hi))
		if err != nil {
			return 0, err
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= lo && n <= hi {
			return n, nil
		}
		fmt.Fprintf(p.out, "Invalid number, expected %d-%d.\n", lo, hi)
	}
}

func (p *Prompter) confirm(ctx context.Context, prompt string) (bool, error) {
	answer, err := p.choose(ctx, prompt+" (Yes/No): ", "Y", "YES", "N", "NO")
	if err != nil {
		return false, err
	}
	return answer[0] == 'Y', nil
}

// NextAction shows the action menu and waits for a choice. An empty answer
// quits.
func (p *Prompter) NextAction(ctx context.Context) (session.Action, error) {
	for {
		fmt.Fprintf(p.out, "\n%s\n", menuRule)
		for i, m := range menu {
			fmt.Fprintf(p.out, "  %d - %s\n", i+1, m.label)
		}
		answer, err := p.ask(ctx, "Select action (press Enter to quit): ")
		if err != nil {
			return 0, err
		}
		if answer == "" {
			return session.ActionQuit, nil
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(menu) {
			return menu[n-1].action, nil
		}
		fmt.Fprintln(p.out, "Unknown action, try again.")
	}
}

// AskSector asks for a sector index.
func (p *Prompter) AskSector(ctx context.Context) (int, error) {
	return p.number(ctx, "Enter sector number", 0, mifare.Sectors-1)
}

// AskWrite runs the write menu. ok is false when the operator declined.
func (p *Prompter) AskWrite(ctx context.Context) (plan mifare.WritePlan, ok bool, err error) {
	fmt.Fprintln(p.out, "=== WRITE MENU ===")

	answer, err := p.choose(ctx, "1) User data (default)\n2) Zeroes\n3) Random data\nSelect data type (1-3): ", "", "1", "2", "3")
	if err != nil {
		return plan, false, err
	}
	dt := parseDataType(answer)

	addr := AddressBlock
	if dt == DataUser {
		fmt.Fprintln(p.out, "Automatic selection: write block in sector")
	} else {
		answer, err = p.choose(ctx, "1) Block (default)\n2) Sector\n3) Entire card\nSelect data address (1-3): ", "", "1", "2", "3")
		if err != nil {
			return plan, false, err
		}
		addr = parseAddress(answer)
	}

	fill := fillFor(dt)

	switch addr {
	case AddressCard:
		if ok, err = p.confirm(ctx, "Writing to entire card..."); !ok || err != nil {
			return plan, false, err
		}
		return mifare.PlanCard(fill), true, nil

	case AddressSector:
		sector, err := p.AskSector(ctx)
		if err != nil {
			return plan, false, err
		}
		if ok, err = p.confirm(ctx, fmt.Sprintf("Writing to entire sector %d...", sector)); !ok || err != nil {
			return plan, false, err
		}
		plan, err = mifare.PlanSector(sector, fill)
		return plan, err == nil, err
	}

	sector, err := p.AskSector(ctx)
	if err != nil {
		return plan, false, err
	}
	lo := 0
	if sector == 0 {
		lo = 1
	}
	block, err := p.number(ctx, "Enter block number", lo, mifare.TrailerIndex-1)
	if err != nil {
		return plan, false, err
	}
	fmt.Fprintf(p.out, "Selected: Block %d in Sector %d\n", block, sector)
	start := mifare.AbsoluteBlock(sector, block)

	data := make([]byte, mifare.BlockSize)
	if dt == DataUser {
		if data, err = p.askData(ctx); err != nil {
			return plan, false, err
		}
		if len(data) == 0 {
			return plan, false, nil
		}
	} else if fill != nil {
		fill(data)
	}

	plan, err = mifare.PlanData(start, data)
	if err != nil {
		fmt.Fprintf(p.out, "%v\n", err)
		return plan, false, nil
	}
	if n := plan.Blocks(); n > 1 {
		fmt.Fprintf(p.out, "Data spans %d blocks, trailers are skipped.\n", n)
	}
	return plan, true, nil
}

// hexPrefix marks a payload typed as hex bytes.
const hexPrefix = "hex:"

// askData reads a payload, asking again while a hex payload is malformed.
// Short payloads are zero-padded to whole blocks when planned.
func (p *Prompter) askData(ctx context.Context) ([]byte, error) {
	for {
		answer, err := p.ask(ctx, "Data (text, or "+hexPrefix+" then hex bytes; Enter to cancel): ")
		if err != nil || answer == "" {
			return nil, err
		}
		data, err := ParsePayload(answer)
		if err == nil {
			return data, nil
		}
		fmt.Fprintf(p.out, "%v\n", err)
	}
}

// ParsePayload returns the text bytes of s. Input starting with "hex:"
// (case-insensitive) is decoded as hex instead.
func ParsePayload(s string) ([]byte, error) {
	if len(s) < len(hexPrefix) || !strings.EqualFold(s[:len(hexPrefix)], hexPrefix) {
		return []byte(s), nil
	}
	raw, err := tlv.ParseHex(s[len(hexPrefix):])
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty hex payload")
	}
	return raw, nil
}

func parseDataType(s string) DataType {
	switch s {
	case "2":
		return DataZero
	case "3":
		return DataRandom
	}
	return DataUser
}

func parseAddress(s string) Address {
	switch s {
	case "2":
		return AddressSector
	case "3":
		return AddressCard
	}
	return AddressBlock
}

func fillFor(dt DataType) func([]byte) {
	if dt == DataRandom {
		return func(b []byte) { rand.Read(b) }
	}
	return nil
}

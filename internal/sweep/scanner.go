package sweep

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	// Runtime is the external sweep tool consumed as a frame source.
	Runtime = "hackrf_sweep"

	// ParseErrorsThreshold defines the number of consecutive parse errors allowed
	ParseErrorsThreshold = 5
)

var (
	// ErrNoData is returned when the sweep tool exits without producing a frame,
	// typically because the device is missing or busy.
	ErrNoData = errors.New("sweep produced no data")

	// ErrTooManyParseErrors is returned when the number of consecutive parse errors exceeds the threshold
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")
)

// Scanner is a frame source: one single-shot scan of a band per call.
// Implementations must honor context cancellation.
type Scanner interface {
	Scan(ctx context.Context, band Band) (*Frame, error)
}

// ScannerConfig configures the hackrf_sweep frame source.
type ScannerConfig struct {
	SerialNumber string `yaml:"serialNumber"` // -d: serial of the desired device, empty for first
	BinWidthHz   int64  `yaml:"binWidthHz"`   // -w: FFT bin width in Hz
}

// Validate checks the scanner configuration for obvious mistakes.
func (c *ScannerConfig) Validate() error {
	if c.BinWidthHz <= 0 {
		return fmt.Errorf("sweep.ScannerConfig: bin width must be positive: %d given", c.BinWidthHz)
	}
	return nil
}

// WithScannerLogger sets the logger for the scanner
func WithScannerLogger(logger *slog.Logger) func(s *HackRFScanner) {
	return func(s *HackRFScanner) {
		s.logger = logger.With(slog.String("runtime", Runtime))
	}
}

// HackRFScanner runs hackrf_sweep in one-shot mode and returns the first
// complete frame of each invocation. The subprocess is terminated after the
// frame is captured; termination escalates from SIGTERM to SIGKILL after one
// second so the radio hardware is always released.
type HackRFScanner struct {
	binPath string
	config  ScannerConfig

	parseErrorsThreshold uint8
	logger               *slog.Logger
}

// NewHackRFScanner creates a scanner backed by the hackrf_sweep binary on PATH.
func NewHackRFScanner(config ScannerConfig, options ...func(s *HackRFScanner)) (*HackRFScanner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	binPath, err := exec.LookPath(Runtime)
	if err != nil {
		return nil, fmt.Errorf("finding %s runtime: %w", Runtime, err)
	}

	s := HackRFScanner{
		binPath:              binPath,
		config:               config,
		parseErrorsThreshold: ParseErrorsThreshold,
		logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s, nil
}

func (s *HackRFScanner) args(band Band) []string {
	// hackrf_sweep expects the frequency range in whole MHz.
	args := []string{
		"-f", fmt.Sprintf("%d:%d",
			int64(band.StartMHz+0.5),
			int64(band.StopMHz+0.5)),
		"-w", strconv.FormatInt(s.config.BinWidthHz, 10),
		"-1", // one sweep per invocation
	}

	if s.config.SerialNumber != "" {
		args = append(args, "-d", s.config.SerialNumber)
	}

	return args
}

// Scan runs a single-shot sweep of the band and returns the first frame.
// Returns ErrNoData (wrapped) when the tool exits without emitting any frame.
func (s *HackRFScanner) Scan(ctx context.Context, band Band) (*Frame, error) {
	cmd := exec.CommandContext(ctx, s.binPath, s.args(band)...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = time.Second // SIGKILL if SIGTERM is ignored

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", Runtime, err)
	}

	frame, readErr := s.readFrame(stdout)

	// Stop the subprocess once a frame is captured. Closing stdout unblocks
	// the tool on write; the SIGTERM/SIGKILL escalation handles the rest.
	_ = stdout.Close()
	if frame != nil {
		_ = cmd.Cancel()
	}

	waitErr := cmd.Wait()

	if frame != nil {
		return frame, nil
	}

	if readErr != nil {
		return nil, readErr
	}

	msg := strings.TrimSpace(stderr.String())
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return nil, fmt.Errorf("%w: %s exited: %v: %s", ErrNoData, Runtime, waitErr, msg)
	}
	return nil, fmt.Errorf("%w: %s", ErrNoData, msg)
}

func (s *HackRFScanner) readFrame(stdout io.Reader) (*Frame, error) {
	var parseErrors uint8

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		frame, err := ParseFrame(line)
		if err != nil {
			parseErrors++
			s.logger.Warn(fmt.Sprintf("error parsing frame: %s", err.Error()), slog.String("line", line))

			if parseErrors >= s.parseErrorsThreshold {
				return nil, ErrTooManyParseErrors
			}
			continue
		}

		return frame, nil
	}

	// Read errors here are expected when the pipe is torn down mid-sweep.
	return nil, nil
}

// ParseFrame parses one line of hackrf_sweep CSV output:
//
//	date, time, hz_low, hz_high, hz_bin_width, num_samples, dB, dB, ...
func ParseFrame(line string) (*Frame, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 7 {
		return nil, fmt.Errorf("invalid sweep output: not enough fields")
	}

	var frame Frame
	var err error

	dateTime := strings.TrimSpace(fields[0]) + " " + strings.TrimSpace(fields[1])
	if frame.Timestamp, err = time.Parse("2006-01-02 15:04:05.000000", dateTime); err != nil {
		// Older builds emit no fractional seconds; fall back before giving up.
		if frame.Timestamp, err = time.Parse("2006-01-02 15:04:05", dateTime); err != nil {
			return nil, fmt.Errorf("invalid timestamp: %w", err)
		}
	}

	if frame.LowHz, err = strconv.ParseFloat(strings.TrimSpace(fields[2]), 64); err != nil {
		return nil, fmt.Errorf("invalid start frequency: %w", err)
	}

	if frame.HighHz, err = strconv.ParseFloat(strings.TrimSpace(fields[3]), 64); err != nil {
		return nil, fmt.Errorf("invalid end frequency: %w", err)
	}

	if frame.BinWidthHz, err = strconv.ParseFloat(strings.TrimSpace(fields[4]), 64); err != nil {
		return nil, fmt.Errorf("invalid bin width: %w", err)
	}

	// fields[5] is the per-bin sample count, unused here.

	frame.Powers = make([]float64, 0, len(fields)-6)
	for _, field := range fields[6:] {
		power, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid power reading: %w", err)
		}
		frame.Powers = append(frame.Powers, power)
	}

	return &frame, nil
}

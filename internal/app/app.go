package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/lordslab/lordslab/internal/audio"
	"github.com/lordslab/lordslab/internal/config"
	"github.com/lordslab/lordslab/internal/device"
	"github.com/lordslab/lordslab/internal/insight"
	"github.com/lordslab/lordslab/internal/metrics"
	"github.com/lordslab/lordslab/internal/profile"
	"github.com/lordslab/lordslab/internal/voice"
)

// Options wires the App's collaborators.
type Options struct {
	Config   *config.Config
	Profiles *profile.Manager
	Insight  *insight.Requester

	In  io.Reader
	Out io.Writer

	// NoAudio runs the voice lab text-only: no devices are opened and
	// inbound audio chunks are discarded.
	NoAudio bool

	// DumpDir, when set, saves each voice session's received audio as a WAV
	// file in this directory.
	DumpDir string
}

// App is the interactive terminal client.
type App struct {
	cfg      *config.Config
	control  *Controller
	profiles *profile.Manager
	insight  *insight.Requester
	scanner  *bufio.Scanner
	out      io.Writer
	noAudio  bool
	dumpDir  string
}

// New builds the app around an initial login screen.
func New(opts Options) *App {
	return &App{
		cfg:      opts.Config,
		control:  NewController(),
		profiles: opts.Profiles,
		insight:  opts.Insight,
		scanner:  bufio.NewScanner(opts.In),
		out:      opts.Out,
		noAudio:  opts.NoAudio,
		dumpDir:  opts.DumpDir,
	}
}

// Run drives the screen loop until the user quits or input ends.
func (a *App) Run(ctx context.Context) error {
	a.banner()
	for {
		if ctx.Err() != nil {
			return nil
		}
		var again bool
		switch a.control.Screen() {
		case ScreenLogin:
			again = a.loginScreen()
		case ScreenAthlete:
			again = a.athleteScreen(ctx)
		case ScreenCoach:
			again = a.coachScreen()
		case ScreenVoice:
			a.voiceScreen(ctx)
			again = true
		}
		if !again {
			return nil
		}
	}
}

func (a *App) banner() {
	fmt.Fprintln(a.out, "╔════════════════════════════════════════════╗")
	fmt.Fprintln(a.out, "║                 LordsLab                   ║")
	fmt.Fprintln(a.out, "║   track your effort, grow as a leader      ║")
	fmt.Fprintln(a.out, "╚════════════════════════════════════════════╝")
}

// readLine prompts and returns the next trimmed input line. ok is false when
// input is exhausted.
func (a *App) readLine(prompt string) (line string, ok bool) {
	fmt.Fprint(a.out, prompt)
	if !a.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(a.scanner.Text()), true
}

// loginScreen collects name, jersey, and role. Invalid input re-prompts
// without comment beyond a short note; "q" at any prompt quits.
func (a *App) loginScreen() bool {
	for {
		name, ok := a.readLine("name: ")
		if !ok || strings.EqualFold(name, "q") {
			return false
		}
		jersey, ok := a.readLine("jersey number: ")
		if !ok || strings.EqualFold(jersey, "q") {
			return false
		}
		roleInput, ok := a.readLine("role [athlete/coach] (athlete): ")
		if !ok {
			return false
		}
		role := profile.RoleAthlete
		if roleInput != "" {
			role = profile.Role(strings.ToLower(roleInput))
		}

		rec, err := a.profiles.FindOrCreate(jersey, name, role)
		if err != nil {
			if errors.Is(err, profile.ErrEmptyField) || errors.Is(err, profile.ErrInvalidRole) {
				fmt.Fprintln(a.out, "please fill in every field")
				continue
			}
			fmt.Fprintf(a.out, "login failed: %v\n", err)
			continue
		}

		a.control.Login(rec)
		fmt.Fprintf(a.out, "\nwelcome, %s (#%s)\n", rec.Name, rec.Jersey)
		return true
	}
}

func (a *App) athleteScreen(ctx context.Context) bool {
	fmt.Fprintln(a.out, "\ncommands: rate <effort> <attitude> | insight | voice | board | logout | q")
	for a.control.Screen() == ScreenAthlete {
		line, ok := a.readLine("> ")
		if !ok {
			return false
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "q":
			return false
		case "logout":
			a.control.Logout()
		case "rate":
			a.handleRate(fields[1:])
		case "insight":
			m := a.control.Metrics()
			fmt.Fprintf(a.out, "\n  %s\n\n", a.insight.Request(ctx, m))
		case "voice":
			if err := a.control.EnterVoice(); err != nil {
				fmt.Fprintln(a.out, err)
			}
		case "board":
			a.printLeaderboard()
		default:
			fmt.Fprintln(a.out, "commands: rate <effort> <attitude> | insight | voice | board | logout | q")
		}
	}
	return true
}

func (a *App) handleRate(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(a.out, "usage: rate <effort> <attitude>  (1-5, steps of 0.5)")
		return
	}
	effort, err1 := strconv.ParseFloat(args[0], 64)
	attitude, err2 := strconv.ParseFloat(args[1], 64)
	if err1 != nil || err2 != nil {
		fmt.Fprintln(a.out, "usage: rate <effort> <attitude>  (1-5, steps of 0.5)")
		return
	}
	m := metrics.Metrics{Effort: effort, Attitude: attitude}
	if err := a.control.SetMetrics(m); err != nil {
		fmt.Fprintln(a.out, err)
		return
	}
	fmt.Fprintf(a.out, "logged: effort %.1f, attitude %.1f\n", m.Effort, m.Attitude)
}

func (a *App) coachScreen() bool {
	a.printLeaderboard()
	fmt.Fprintln(a.out, "\ncommands: board | logout | q")
	for a.control.Screen() == ScreenCoach {
		line, ok := a.readLine("> ")
		if !ok {
			return false
		}
		switch strings.ToLower(line) {
		case "":
		case "q":
			return false
		case "logout":
			a.control.Logout()
		case "board":
			a.printLeaderboard()
		default:
			fmt.Fprintln(a.out, "commands: board | logout | q")
		}
	}
	return true
}

func (a *App) printLeaderboard() {
	records, err := a.profiles.ListAll()
	if err != nil {
		fmt.Fprintf(a.out, "leaderboard unavailable: %v\n", err)
		return
	}
	WriteLeaderboard(a.out, records)
}

// WriteLeaderboard renders the persisted standings as a plain table.
func WriteLeaderboard(w io.Writer, records []profile.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no profiles yet")
		return
	}
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tROLE\tPOINTS\tSTREAK")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", r.Jersey, r.Name, r.Role, r.Points, r.Streak)
	}
	_ = tw.Flush()
}

// voiceScreen runs one live coaching session. Any session end, clean or not,
// lands back on the athlete screen; there is no reconnect.
func (a *App) voiceScreen(ctx context.Context) {
	defer a.control.LeaveVoice()

	rec, err := a.control.Current()
	if err != nil {
		fmt.Fprintln(a.out, err)
		return
	}

	session := voice.NewSession(voice.Config{
		APIKey:           a.cfg.GeminiAPIKey,
		Model:            a.cfg.LiveModel,
		SystemPrompt:     voicePrompt(rec, a.control.Metrics()),
		QueueDepth:       a.cfg.QueueDepth,
		TranscriptWindow: a.cfg.TranscriptWindow,
		OnTerminate: func(msg string) {
			if msg != "" {
				fmt.Fprintf(a.out, "session ended: %s (press enter)\n", msg)
			}
		},
	})

	var (
		speaker   *device.Speaker
		scheduler *audio.Scheduler
		mic       *device.Mic
	)
	if !a.noAudio {
		speaker, err = device.OpenSpeaker(a.cfg.PlaybackRateHz)
		if err != nil {
			fmt.Fprintf(a.out, "voice lab unavailable: %v\n", err)
			return
		}
		defer speaker.Close()
		scheduler = audio.NewScheduler(speaker, a.cfg.PlaybackRateHz)
		defer scheduler.StopAll()

		mic, err = device.OpenMic(a.cfg.CaptureRateHz, a.cfg.FrameSamples, func(frame []float32) {
			if err := session.SendFrame(frame); err != nil {
				slog.Debug("dropping mic frame", "error", err)
			}
		})
		if err != nil {
			fmt.Fprintf(a.out, "voice lab unavailable: %v\n", err)
			return
		}
		defer mic.Close()
	}

	if err := session.Start(ctx); err != nil {
		fmt.Fprintf(a.out, "voice lab unavailable: %v\n", err)
		return
	}
	defer func() {
		if n := session.DroppedFrames(); n > 0 {
			fmt.Fprintf(a.out, "note: %d audio frames dropped under backpressure\n", n)
		}
	}()
	defer session.Close()

	var dump *sessionDump
	if a.dumpDir != "" {
		dump = newSessionDump(a.dumpDir)
	}
	go a.pumpVoiceEvents(session.Events(), scheduler, speaker, dump)

	fmt.Fprintln(a.out, "voice lab — speak naturally; /t <text> to type, q to end")
	for {
		line, ok := a.readLine("")
		if !ok || strings.EqualFold(line, "q") || ctx.Err() != nil {
			return
		}
		if session.State() == voice.StateTerminated {
			return
		}
		if text, found := strings.CutPrefix(line, "/t "); found {
			if err := session.SendText(text); err != nil {
				fmt.Fprintf(a.out, "send failed: %v\n", err)
			}
		}
	}
}

func (a *App) pumpVoiceEvents(events <-chan voice.Event, scheduler *audio.Scheduler, speaker *device.Speaker, dump *sessionDump) {
	for event := range events {
		switch e := event.(type) {
		case voice.TranscriptEvent:
			fmt.Fprintf(a.out, "[%s] %s\n", e.Entry.Speaker, e.Entry.Text)
		case voice.AudioEvent:
			if scheduler != nil {
				scheduler.Schedule(e.PCM)
			}
			if dump != nil {
				dump.append(e.PCM)
			}
		case voice.InterruptedEvent:
			if scheduler != nil {
				scheduler.StopAll()
				scheduler.Reset()
			}
			if speaker != nil {
				speaker.Flush()
			}
		}
	}

	if dump != nil {
		path, err := dump.write()
		switch {
		case err != nil:
			fmt.Fprintf(a.out, "could not save session audio: %v\n", err)
		case path != "":
			fmt.Fprintf(a.out, "session audio saved to %s\n", path)
		}
	}
}

func voicePrompt(rec profile.Record, m metrics.Metrics) string {
	return fmt.Sprintf(
		"You are a supportive leadership coach for youth athletes, speaking "+
			"live over voice. Keep replies short and conversational. You are "+
			"talking to %s (jersey #%s). Today they rated their effort %.1f "+
			"and attitude %.1f out of 5. Help them reflect on leading their "+
			"team well.",
		rec.Name, rec.Jersey, m.Effort, m.Attitude)
}

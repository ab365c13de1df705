// Command transcribe streams a local WAV or raw PCM file through one live
// transcription session, as if it were the microphone, and prints the
// transcript as it is reconciled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexiqai/interview-assistant/internal/audio"
	"github.com/lexiqai/interview-assistant/internal/config"
	"github.com/lexiqai/interview-assistant/internal/interview"
	"github.com/lexiqai/interview-assistant/internal/observability"
	"github.com/lexiqai/interview-assistant/internal/speaker"
	"github.com/lexiqai/interview-assistant/internal/stt"
	"github.com/lexiqai/interview-assistant/internal/transcript"
)

type printer struct {
	failed chan error
}

func (printer) Listening(s speaker.Speaker) {
	fmt.Fprintf(os.Stderr, "[%s] listening\n", s.Role())
}

func (printer) TranscriptUpdated(s speaker.Speaker, state transcript.State, event stt.TranscriptEvent) {
	if event.IsFinal {
		fmt.Printf("[%s] %s\n", s.Role(), state.Committed)
	}
}

func (printer) Stopped(s speaker.Speaker, rec *audio.Recording) {
	fmt.Fprintf(os.Stderr, "[%s] stopped\n", s.Role())
}

func (p printer) SessionFailed(s speaker.Speaker, err error) {
	p.failed <- err
}

func main() {
	input := flag.String("in", "", "WAV or 16-bit little-endian PCM file to transcribe")
	output := flag.String("out", "", "where to save the recording (optional)")
	role := flag.String("speaker", "interviewer", "speaker role: interviewer or candidate")
	rate := flag.Int("rate", 16000, "sample rate of headerless PCM input")
	flag.Parse()

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.LogLevel, true)
	logger := observability.GetLogger()

	sp, err := speaker.Parse(*role)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid speaker")
	}

	file, err := os.Open(*input)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open input")
	}
	defer file.Close()

	device := audio.NewReaderDevice(file, audio.ReaderOptions{
		SampleRate: *rate,
		BufferSize: cfg.AudioBufferSize,
		Logger:     logger,
	})

	listener := printer{failed: make(chan error, 1)}
	session := interview.New(interview.Config{
		Device:        device,
		Dialer:        stt.NewDeepgramDialer(cfg.DeepgramLiveURL),
		APIKey:        cfg.DeepgramAPIKey,
		Options:       stt.NewLiveOptions(cfg.DeepgramModel, cfg.DeepgramLanguage, "", 0, 0),
		Constraints:   audio.DefaultConstraints(),
		ChunkInterval: cfg.ChunkInterval(),
		KeepAlive:     cfg.KeepAliveInterval(),
		CloseWait:     cfg.CloseWait(),
		Listener:      listener,
		Logger:        logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := session.Start(ctx, sp); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start transcription")
	}

	select {
	case <-device.Finished():
		// Let the last buffered audio reach the encoder
		time.Sleep(cfg.ChunkInterval())
	case err := <-listener.failed:
		logger.Fatal().Err(err).Msg("Transcription failed")
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.CloseWait()+5*time.Second)
	defer cancel()

	rec, err := session.Stop(stopCtx, sp)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to stop transcription")
	}

	fmt.Printf("\n%s\n", session.Transcript(sp).Committed)

	if *output == "" || rec == nil {
		return
	}
	out, err := os.Create(*output)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create output")
	}
	defer out.Close()
	if _, err := rec.WriteTo(out); err != nil {
		logger.Fatal().Err(err).Msg("Failed to save recording")
	}
	logger.Info().Str("path", *output).Int("bytes", rec.Size()).Msg("Recording saved")
}

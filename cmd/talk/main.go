package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lexiqai/voice-character/internal/asr"
	"github.com/lexiqai/voice-character/internal/audio"
	"github.com/lexiqai/voice-character/internal/audio/miniaudio"
	"github.com/lexiqai/voice-character/internal/chat"
	"github.com/lexiqai/voice-character/internal/config"
	"github.com/lexiqai/voice-character/internal/observability"
	"github.com/lexiqai/voice-character/internal/pipeline"
	"github.com/lexiqai/voice-character/internal/tts"
	"github.com/lexiqai/voice-character/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "talk: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Log lines must not land on the screen the UI draws
	var logOut io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := observability.OpenLogFile(cfg.LogFile)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	observability.InitLoggerTo(logOut, cfg.LogLevel, cfg.LogPretty)
	logger := observability.WithComponent("talk")

	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	transcriber, err := asr.New(cfg)
	if err != nil {
		return err
	}
	responder, err := chat.New(cfg)
	if err != nil {
		return err
	}

	// Without an audio backend the recorder reports DeviceUnavailable on
	// every trigger and replies stay silent.
	audioCtx, err := miniaudio.NewContext()
	if err != nil {
		logger.Error().Err(err).Msg("Audio backend unavailable")
	} else {
		defer audioCtx.Close()
	}

	var player tts.Player
	if audioCtx != nil {
		out := miniaudio.NewSpeaker(audioCtx, tts.CartesiaSampleRate)
		defer out.Close()
		player = out
	}
	speaker := tts.New(cfg, player)

	format := audio.DefaultFormat()
	format.SampleRate = cfg.CaptureSampleRate
	vad := audio.DefaultVADConfig()
	vad.EnergyThreshold = cfg.VADEnergyThreshold
	vad.FrameSize = cfg.CaptureSampleRate / 50

	recorder := audio.NewRecorder(
		miniaudio.NewMicrophone(audioCtx),
		audio.WithFormat(format),
		audio.WithMinDuration(cfg.CaptureMin()),
		audio.WithMaxDuration(cfg.CaptureMax()),
		audio.WithVAD(vad),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := pipeline.NewSession(ctx, pipeline.New(transcriber, responder, speaker), recorder)

	logger.Info().
		Str("asr_backend", cfg.ASRBackend).
		Str("chat_backend", cfg.ChatBackend).
		Str("tts_backend", cfg.TTSBackend).
		Msg("Interactive session starting")

	program := tea.NewProgram(tui.New(session, cfg.CharacterName), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return err
	}

	stop()
	session.Wait()
	logger.Info().Msg("Interactive session ended")
	return nil
}

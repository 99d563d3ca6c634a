package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Transcriber turns a candidate's audio reply into text. Failures yield "".
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string) string
}

// SpeechRecognizer recognizes speech in normalized audio.
type SpeechRecognizer interface {
	TranscribeAudioWithPrompt(ctx context.Context, audioData []byte, mimeType, prompt string) (string, error)
}

// AudioNormalizer converts audio of the given format to mono 16 kHz WAV.
type AudioNormalizer func(ctx context.Context, audio []byte, format string) ([]byte, error)

// SpeechTranscriber normalizes audio with ffmpeg and recognizes it in a fixed language
type SpeechTranscriber struct {
	recognizer SpeechRecognizer
	normalize  AudioNormalizer
	language   string
}

func NewSpeechTranscriber(recognizer SpeechRecognizer, ffmpegPath, language string) *SpeechTranscriber {
	return &SpeechTranscriber{
		recognizer: recognizer,
		normalize:  FFmpegNormalizer(ffmpegPath),
		language:   language,
	}
}

func (t *SpeechTranscriber) Transcribe(ctx context.Context, audio []byte, format string) string {
	if len(audio) == 0 {
		return ""
	}

	wav, err := t.normalize(ctx, audio, format)
	if err != nil {
		slog.Error("Failed to normalize audio", "error", err, "format", format, "size", len(audio))
		return ""
	}

	prompt := fmt.Sprintf("Transcribe this interview answer. The speaker talks in %s. "+
		"Return only the transcript with no commentary. If there is no intelligible speech, return an empty string.", t.language)

	transcript, err := t.recognizer.TranscribeAudioWithPrompt(ctx, wav, "audio/wav", prompt)
	if err != nil {
		slog.Error("Failed to transcribe audio", "error", err)
		return ""
	}
	return strings.Trim(strings.TrimSpace(transcript), `"`)
}

// FFmpegNormalizer converts audio to 16-bit PCM WAV, mono, 16 kHz.
func FFmpegNormalizer(ffmpegPath string) AudioNormalizer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	return func(ctx context.Context, audio []byte, format string) ([]byte, error) {
		if format == "" {
			format = "mp3"
		}

		inputFile, err := os.CreateTemp("", "answer-*."+format)
		if err != nil {
			return nil, fmt.Errorf("failed to create input temp file: %w", err)
		}
		defer os.Remove(inputFile.Name())
		defer inputFile.Close()

		outputFile, err := os.CreateTemp("", "answer-*.wav")
		if err != nil {
			return nil, fmt.Errorf("failed to create output temp file: %w", err)
		}
		defer os.Remove(outputFile.Name())
		defer outputFile.Close()

		if _, err := inputFile.Write(audio); err != nil {
			return nil, fmt.Errorf("failed to write audio data: %w", err)
		}
		inputFile.Close()
		outputFile.Close()

		var stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, ffmpegPath,
			"-i", inputFile.Name(),
			"-acodec", "pcm_s16le",
			"-ar", "16000",
			"-ac", "1",
			"-y",
			outputFile.Name(),
		)
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("ffmpeg conversion failed: %w: %s", err, strings.TrimSpace(stderr.String()))
		}

		wavData, err := os.ReadFile(outputFile.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read converted WAV file: %w", err)
		}

		slog.Info("Audio conversion completed", "input_size", len(audio), "wav_size", len(wavData))
		return wavData, nil
	}
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	elevenLabsBaseURL    = "https://api.elevenlabs.io/v1"
	elevenLabsFormat     = "pcm_24000"
	DefaultElevenLabsTTS = "eleven_multilingual_v2"
)

// SpeechFormat describes the raw audio sent to the client in voice mode.
type SpeechFormat struct {
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Format     string `json:"format"`
}

var questionSpeechFormat = SpeechFormat{SampleRate: 24000, Channels: 1, Format: "pcm_s16le"}

// Speaker synthesizes question audio for voice mode.
type Speaker interface {
	Speak(ctx context.Context, text, voiceID string) ([]byte, SpeechFormat, error)
}

type ElevenLabsService struct {
	client  *resty.Client
	modelID string
	cache   *AudioCache
}

type ElevenLabsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

func NewElevenLabsService(apiKey, modelID string, cache *AudioCache) *ElevenLabsService {
	if modelID == "" {
		modelID = DefaultElevenLabsTTS
	}
	client := resty.New().
		SetBaseURL(elevenLabsBaseURL).
		SetTimeout(60*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("xi-api-key", apiKey)

	return &ElevenLabsService{client: client, modelID: modelID, cache: cache}
}

// Speak returns 24 kHz mono 16-bit PCM for text, from the cache when possible
func (e *ElevenLabsService) Speak(ctx context.Context, text, voiceID string) ([]byte, SpeechFormat, error) {
	if voiceID == "" {
		voiceID = defaultVoice
	}

	generate := func() ([]byte, error) {
		return e.textToSpeech(ctx, text, voiceID)
	}

	var (
		audio []byte
		err   error
	)
	if e.cache != nil {
		audio, err = e.cache.GetOrGenerate(ctx, text, voiceID, generate)
	} else {
		audio, err = generate()
	}
	if err != nil {
		return nil, SpeechFormat{}, err
	}
	return audio, questionSpeechFormat, nil
}

func (e *ElevenLabsService) textToSpeech(ctx context.Context, text, voiceID string) ([]byte, error) {
	request := ElevenLabsRequest{
		Text:    text,
		ModelID: e.modelID,
		VoiceSettings: VoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.5,
		},
	}

	resp, err := e.client.R().
		SetContext(ctx).
		SetHeader("Accept", "audio/pcm").
		SetQueryParam("output_format", elevenLabsFormat).
		SetBody(request).
		Post("/text-to-speech/" + voiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("elevenlabs API error: %d - %s", resp.StatusCode(), resp.String())
	}

	slog.Info("Generated audio from ElevenLabs", "text_length", len(text), "voice_id", voiceID, "size", len(resp.Body()))
	return resp.Body(), nil
}

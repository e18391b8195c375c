package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

const (
	TranslatorGoogle     = "google"
	TranslatorPhrasebook = "phrasebook"
	AssistantOllama      = "ollama"
	AssistantOpenAI      = "openai"
	AssistantChain       = "chain"
	AssistantNone        = "none"
)

var validate = validator.New()

type Config struct {
	Host       string `env:"HOST,default=0.0.0.0" validate:"required"`
	Port       int    `env:"PORT,default=8080" validate:"min=1,max=65535"`
	HealthPort int    `env:"HEALTH_PORT,default=50051" validate:"min=1,max=65535"`
	DebugPort  int    `env:"DEBUG_PORT,default=8081" validate:"min=1,max=65535"`
	LogLevel   string `env:"LOG_LEVEL,default=INFO"`

	BufferSize           int           `env:"BUFFER_SIZE,default=256" validate:"min=1"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64" validate:"min=1"`
	NumberOfWorkers      int           `env:"NUMBER_OF_WORKERS,default=4" validate:"min=1"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=5s" validate:"gt=0"`

	DefaultLanguage      string `env:"DEFAULT_LANGUAGE,default=en" validate:"required,bcp47_language_tag"`
	EchoToSender         bool   `env:"ECHO_TO_SENDER,default=false"`
	DetectSourceLanguage bool   `env:"DETECT_SOURCE_LANGUAGE,default=false"`
	MaxContentLength     int    `env:"MAX_CONTENT_LENGTH,default=2000" validate:"min=1"`

	MaxFrameSize int64         `env:"MAX_FRAME_SIZE,default=16384" validate:"min=1"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"gt=0"`
	PongTimeout  time.Duration `env:"PONG_TIMEOUT,default=60s" validate:"gt=0"`

	TranslatorBackend       string        `env:"TRANSLATOR_BACKEND,default=google" validate:"oneof=google phrasebook"`
	GoogleTranslateURL      string        `env:"GOOGLE_TRANSLATE_URL,default=https://translate.googleapis.com/translate_a/single" validate:"url"`
	TranslationTimeout      time.Duration `env:"TRANSLATION_TIMEOUT,default=4s" validate:"gt=0"`
	TranslationCacheTTL     time.Duration `env:"TRANSLATION_CACHE_TTL,default=10m" validate:"gt=0"`
	MaxParallelTranslations int           `env:"MAX_PARALLEL_TRANSLATIONS,default=8" validate:"min=0"`

	AssistantBackend  string        `env:"ASSISTANT_BACKEND,default=chain" validate:"oneof=ollama openai chain none"`
	AssistantTimeout  time.Duration `env:"ASSISTANT_TIMEOUT,default=5s" validate:"gt=0"`
	AssistantPrefixes string        `env:"ASSISTANT_PREFIXES,default=@assistant;/ai"`
	AssistantName     string        `env:"ASSISTANT_NAME,default=Assistant" validate:"required"`
	AssistantWorkers  int           `env:"ASSISTANT_WORKERS,default=2" validate:"min=1"`
	OllamaURL         string        `env:"OLLAMA_URL,default=http://localhost:11434" validate:"url"`
	OllamaModel       string        `env:"OLLAMA_MODEL,default=gemma3:4b" validate:"required"`
	OpenAIURL         string        `env:"OPENAI_URL,default=https://api.openai.com/v1" validate:"url"`
	OpenAIModel       string        `env:"OPENAI_MODEL,default=gpt-3.5-turbo" validate:"required"`
	OpenAIAPIKey      string        `env:"OPENAI_API_KEY"`

	ModerationEnabled bool   `env:"MODERATION_ENABLED,default=false"`
	CharReplacement   string `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
}

// LoadConfig reads the process environment, applies defaults and validates.
func LoadConfig() (Config, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, err
	}
	if err := validate.Struct(config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Prefixes splits ASSISTANT_PREFIXES on ';'.
func (c Config) Prefixes() []string {
	var prefixes []string
	for _, p := range strings.Split(c.AssistantPrefixes, ";") {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return prefixes
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}

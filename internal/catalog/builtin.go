package catalog

import "github.com/jmylchreest/genmedia-api/internal/models"

func intPtr(n int) *int { return &n }

// Builtin returns the routes shipped with the binary.
func Builtin() []Route {
	return []Route{
		// ========================================
		// Video
		// ========================================
		{
			Model:         "veo3",
			Kind:          models.JobKindVideo,
			Adapter:       AdapterTaskAPI,
			ProviderModel: "veo3",
			Path:          "/api/v1/veo/generate",
			Cost:          400,
			Description:   "Veo 3 quality text/image to video with audio",
			Defaults:      map[string]any{"aspectRatio": "16:9"},
			Rules: Rules{
				PromptRequired:  true,
				MaxPromptLength: 5000,
				MaxReferences:   intPtr(1),
				AspectRatios:    []string{"16:9", "9:16"},
			},
			ReferenceField: "imageUrls",
		},
		{
			Model:         "veo3_fast",
			Kind:          models.JobKindVideo,
			Adapter:       AdapterTaskAPI,
			ProviderModel: "veo3_fast",
			Path:          "/api/v1/veo/generate",
			Cost:          100,
			Description:   "Veo 3 fast text/image to video",
			Defaults:      map[string]any{"aspectRatio": "16:9"},
			Rules: Rules{
				PromptRequired:  true,
				MaxPromptLength: 5000,
				MaxReferences:   intPtr(1),
				AspectRatios:    []string{"16:9", "9:16"},
			},
			ReferenceField: "imageUrls",
		},
		{
			Model:          "kling",
			Kind:           models.JobKindVideo,
			Adapter:        AdapterPrediction,
			ProviderModel:  "kwaivgi/kling-v2.1",
			Cost:           150,
			Description:    "Kling 2.1 image to video",
			Defaults:       map[string]any{"duration": 5},
			ReferenceField: "start_image",
			Rules: Rules{
				PromptRequired:  true,
				MaxPromptLength: 2500,
				ExactReferences: intPtr(1),
				MaxReferences:   intPtr(1),
				Durations:       []int{5, 10},
			},
		},

		// ========================================
		// Image
		// ========================================
		{
			Model:         "flux-kontext-pro",
			Kind:          models.JobKindImage,
			Adapter:       AdapterTaskAPI,
			ProviderModel: "flux-kontext-pro",
			Path:          "/api/v1/flux/kontext/generate",
			Cost:          20,
			Description:   "FLUX.1 Kontext Pro generation and editing",
			Rules: Rules{
				PromptRequired:  true,
				MaxPromptLength: 4000,
				MaxReferences:   intPtr(1),
				AspectRatios:    []string{"21:9", "16:9", "4:3", "1:1", "3:4", "9:16"},
			},
			ReferenceField: "inputImage",
		},
		{
			Model:         "flux-kontext-max",
			Kind:          models.JobKindImage,
			Adapter:       AdapterTaskAPI,
			ProviderModel: "flux-kontext-max",
			Path:          "/api/v1/flux/kontext/generate",
			Cost:          40,
			Description:   "FLUX.1 Kontext Max generation and editing",
			Rules: Rules{
				PromptRequired:  true,
				MaxPromptLength: 4000,
				MaxReferences:   intPtr(1),
				AspectRatios:    []string{"21:9", "16:9", "4:3", "1:1", "3:4", "9:16"},
			},
			ReferenceField: "inputImage",
		},
		{
			Model:          "nano-banana-edit",
			Kind:           models.JobKindImage,
			Adapter:        AdapterTaskAPI,
			ProviderModel:  "google/nano-banana-edit",
			Cost:           15,
			Description:    "Gemini image editing from up to five references",
			ReferenceField: "image_urls",
			Rules: Rules{
				PromptRequired:  true,
				MaxPromptLength: 5000,
				MinReferences:   1,
				MaxReferences:   intPtr(5),
			},
		},
		{
			Model:          "seedream-compose",
			Kind:           models.JobKindImage,
			Adapter:        AdapterPrediction,
			ProviderModel:  "bytedance/seedream-4",
			Cost:           30,
			Description:    "Compose two reference images into one scene",
			ReferenceField: "image_input",
			Rules: Rules{
				PromptRequired:  true,
				MaxPromptLength: 2000,
				ExactReferences: intPtr(2),
			},
		},

		// ========================================
		// Music, speech and sound
		// ========================================
		{
			Model:         "suno",
			Kind:          models.JobKindMusic,
			Adapter:       AdapterTaskAPI,
			ProviderModel: "V4_5",
			Path:          "/api/v1/generate",
			Cost:          50,
			Description:   "Suno song generation",
			Defaults:      map[string]any{"customMode": false, "instrumental": false},
			Rules: Rules{
				PromptRequired:  true,
				MaxPromptLength: 3000,
				MaxReferences:   intPtr(0),
			},
		},
		{
			Model:         "elevenlabs-tts",
			Kind:          models.JobKindSpeech,
			Adapter:       AdapterTaskAPI,
			ProviderModel: "elevenlabs/text-to-speech-multilingual-v2",
			Cost:          10,
			Description:   "Multilingual text to speech",
			Defaults:      map[string]any{"voice": "Rachel"},
			Rules: Rules{
				PromptRequired:  true,
				MaxPromptLength: 5000,
				MaxReferences:   intPtr(0),
			},
		},
		{
			Model:         "elevenlabs-sfx",
			Kind:          models.JobKindSoundEffect,
			Adapter:       AdapterTaskAPI,
			ProviderModel: "elevenlabs/sound-effect-v2",
			Cost:          10,
			Description:   "Sound effect from a text description",
			Rules: Rules{
				PromptRequired:  true,
				MaxPromptLength: 450,
				MaxReferences:   intPtr(0),
			},
		},
		{
			Model:          "mmaudio",
			Kind:           models.JobKindAudio,
			Adapter:        AdapterPrediction,
			ProviderModel:  "zsxkib/mmaudio",
			Cost:           25,
			Description:    "Soundtrack for an existing video",
			ReferenceField: "video",
			Rules: Rules{
				ExactReferences: intPtr(1),
				MaxReferences:   intPtr(1),
			},
		},
	}
}

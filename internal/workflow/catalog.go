package workflow

// builtinCatalog is the compile-time-frozen set of RENDER pipelines this
// agent advertises. File names are grounded in the literal scenario in
// spec.md §8 (scenario 3) and the slot vocabulary confirmed by
// original_source/node-agent/agent.py's COMFYUI_MODELS_PATHS (unet, vae,
// clip, lora).
func builtinCatalog() []Spec {
	return []Spec{
		{
			ID:          "wan2.2_14B_t2v",
			Name:        "Wan 2.2 14B Text-to-Video",
			Description: "14B-parameter dual-stage (high/low noise) text-to-video pipeline with a 4-step LightX2V LoRA.",
			Kind:        KindText2Video,
			Resolution:  "1280x720",
			FPS:         16,
			Frames:      81,
			Models: map[string]string{
				"unet_high": "wan2.2_t2v_high_noise_14B_fp8_scaled.safetensors",
				"unet_low":  "wan2.2_t2v_low_noise_14B_fp8_scaled.safetensors",
				"vae":       "wan_2.1_vae.safetensors",
				"clip":      "umt5_xxl_fp8_e4m3fn_scaled.safetensors",
				"lora_high": "wan2.2_t2v_lightx2v_4steps_lora_v1.1_high_noise.safetensors",
				"lora_low":  "wan2.2_t2v_lightx2v_4steps_lora_v1.1_low_noise.safetensors",
			},
			Sampler: Sampler{Name: "euler", Scheduler: "simple", Steps: 4, CFG: 1.0, Denoise: 1.0},
			Graph: map[string]Node{
				"1": {ClassType: "UNETLoader", Inputs: map[string]interface{}{"unet_name": "wan2.2_t2v_high_noise_14B_fp8_scaled.safetensors"}},
				"2": {ClassType: "UNETLoader", Inputs: map[string]interface{}{"unet_name": "wan2.2_t2v_low_noise_14B_fp8_scaled.safetensors"}},
				"3": {ClassType: "VAELoader", Inputs: map[string]interface{}{"vae_name": "wan_2.1_vae.safetensors"}},
				"4": {ClassType: "CLIPLoader", Inputs: map[string]interface{}{"clip_name": "umt5_xxl_fp8_e4m3fn_scaled.safetensors"}},
				"5": {ClassType: "LoraLoader", Inputs: map[string]interface{}{"lora_name": "wan2.2_t2v_lightx2v_4steps_lora_v1.1_high_noise.safetensors", "model": []interface{}{"1", 0}}},
				"6": {ClassType: "LoraLoader", Inputs: map[string]interface{}{"lora_name": "wan2.2_t2v_lightx2v_4steps_lora_v1.1_low_noise.safetensors", "model": []interface{}{"2", 0}}},
				"7": {ClassType: "CLIPTextEncode", Inputs: map[string]interface{}{"text": SentinelPositivePrompt, "clip": []interface{}{"4", 0}}},
				"8": {ClassType: "CLIPTextEncode", Inputs: map[string]interface{}{"text": SentinelNegativePrompt, "clip": []interface{}{"4", 0}}},
				"9": {ClassType: "KSamplerAdvanced", Inputs: map[string]interface{}{
					"seed": SentinelSeed, "steps": 4, "cfg": 1.0, "sampler_name": "euler", "scheduler": "simple",
					"model": []interface{}{"5", 0}, "positive": []interface{}{"7", 0}, "negative": []interface{}{"8", 0},
				}},
				"10": {ClassType: "VAEDecode", Inputs: map[string]interface{}{"samples": []interface{}{"9", 0}, "vae": []interface{}{"3", 0}}},
				"11": {ClassType: "SaveVideo", Inputs: map[string]interface{}{"images": []interface{}{"10", 0}, "fps": 16}},
			},
		},
		{
			ID:          "svd_img2vid",
			Name:        "Stable Video Diffusion Image-to-Video",
			Description: "Single-image conditioned video pipeline, 25 frames at 6fps.",
			Kind:        KindImage2Video,
			Resolution:  "1024x576",
			FPS:         6,
			Frames:      25,
			Models: map[string]string{
				"checkpoint": "svd_xt_1_1.safetensors",
				"vae":        "svd_vae.safetensors",
			},
			Sampler: Sampler{Name: "euler", Scheduler: "karras", Steps: 20, CFG: 2.5, Denoise: 1.0},
			Graph: map[string]Node{
				"1": {ClassType: "ImageOnlyCheckpointLoader", Inputs: map[string]interface{}{"ckpt_name": "svd_xt_1_1.safetensors"}},
				"2": {ClassType: "VAELoader", Inputs: map[string]interface{}{"vae_name": "svd_vae.safetensors"}},
				"3": {ClassType: "LoadImage", Inputs: map[string]interface{}{"image": "input.png"}},
				"4": {ClassType: "SVD_img2vid_Conditioning", Inputs: map[string]interface{}{
					"init_image": []interface{}{"3", 0}, "model": []interface{}{"1", 0},
				}},
				"5": {ClassType: "KSampler", Inputs: map[string]interface{}{
					"seed": SentinelSeed, "steps": 20, "cfg": 2.5, "sampler_name": "euler", "scheduler": "karras",
					"model": []interface{}{"1", 0}, "positive": []interface{}{"4", 0}, "negative": []interface{}{"4", 1},
				}},
				"6": {ClassType: "VAEDecode", Inputs: map[string]interface{}{"samples": []interface{}{"5", 0}, "vae": []interface{}{"2", 0}}},
				"7": {ClassType: "SaveVideo", Inputs: map[string]interface{}{"images": []interface{}{"6", 0}, "fps": 6}},
			},
		},
		{
			ID:          "sdxl_t2i",
			Name:        "SDXL Text-to-Image",
			Description: "Base SDXL checkpoint with a single refinement LoRA.",
			Kind:        KindText2Image,
			Resolution:  "1024x1024",
			FPS:         0,
			Frames:      1,
			Models: map[string]string{
				"checkpoint": "sd_xl_base_1.0.safetensors",
				"lora":       "sdxl_detail_tweaker.safetensors",
			},
			Sampler: Sampler{Name: "dpmpp_2m", Scheduler: "karras", Steps: 30, CFG: 7.0, Denoise: 1.0},
			Graph: map[string]Node{
				"1": {ClassType: "CheckpointLoaderSimple", Inputs: map[string]interface{}{"ckpt_name": "sd_xl_base_1.0.safetensors"}},
				"2": {ClassType: "LoraLoader", Inputs: map[string]interface{}{"lora_name": "sdxl_detail_tweaker.safetensors", "model": []interface{}{"1", 0}}},
				"3": {ClassType: "CLIPTextEncode", Inputs: map[string]interface{}{"text": SentinelPositivePrompt, "clip": []interface{}{"1", 1}}},
				"4": {ClassType: "CLIPTextEncode", Inputs: map[string]interface{}{"text": SentinelNegativePrompt, "clip": []interface{}{"1", 1}}},
				"5": {ClassType: "EmptyLatentImage", Inputs: map[string]interface{}{"width": 1024, "height": 1024, "batch_size": 1}},
				"6": {ClassType: "KSampler", Inputs: map[string]interface{}{
					"seed": SentinelSeed, "steps": 30, "cfg": 7.0, "sampler_name": "dpmpp_2m", "scheduler": "karras",
					"model": []interface{}{"2", 0}, "positive": []interface{}{"3", 0}, "negative": []interface{}{"4", 0}, "latent_image": []interface{}{"5", 0},
				}},
				"7": {ClassType: "VAEDecode", Inputs: map[string]interface{}{"samples": []interface{}{"6", 0}, "vae": []interface{}{"1", 2}}},
				"8": {ClassType: "SaveImage", Inputs: map[string]interface{}{"images": []interface{}{"7", 0}}},
			},
		},
	}
}

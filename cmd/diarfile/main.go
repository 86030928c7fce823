// Команда diarfile прогоняет MP3 файл через движок диаризации и печатает
// итоговый таймлайн. Чанки подаются с реальным темпом (100ms), чтобы
// тракт работал так же, как с живым микрофоном.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"speakline/ai"
	"speakline/audio"
	"speakline/timeline"
)

func main() {
	input := flag.String("input", "", "Path to MP3 file")
	vadModel := flag.String("vad-model", "silero_vad.onnx", "Path to Silero VAD model")
	encoderModel := flag.String("encoder-model", "wespeaker_en_voxceleb_resnet34.onnx", "Path to encoder model")
	useSherpa := flag.Bool("sherpa", false, "Use sherpa-onnx embedding backend")
	maxSpeakers := flag.Int("max-speakers", 10, "Hard cap on speaker count")
	realtime := flag.Bool("realtime", true, "Pace chunks at capture cadence")
	flag.Parse()

	if *input == "" {
		log.Fatal("usage: diarfile -input dialogue.mp3")
	}

	aiCfg := ai.DefaultConfig()
	aiCfg.MaxSpeakers = *maxSpeakers

	source, err := audio.NewMP3Source(*input, aiCfg.SampleRate)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *input, err)
	}
	log.Printf("Loaded %s: %.1fs", *input, source.Duration())

	detector, err := ai.NewSileroVAD(ai.DefaultSileroVADConfig(*vadModel))
	if err != nil {
		log.Fatalf("Failed to init VAD: %v", err)
	}
	defer detector.Close()

	var encoder ai.VoiceEncoder
	if *useSherpa {
		encoder, err = ai.NewSherpaEncoder(ai.DefaultSherpaEncoderConfig(*encoderModel))
	} else {
		encoder, err = ai.NewSpeakerEncoder(ai.DefaultSpeakerEncoderConfig(*encoderModel))
	}
	if err != nil {
		log.Fatalf("Failed to init encoder: %v", err)
	}
	defer encoder.Close()

	tl := timeline.New()
	handler := ai.NewSpeakerHandler(aiCfg)
	proc := ai.NewProcessor(aiCfg, tl, handler, detector, encoder)
	proc.Run()
	defer proc.Stop()

	proc.Start()

	chunkSamples := aiCfg.SampleRate / 10 // 100ms
	for {
		chunk, err := source.ReadChunk(chunkSamples)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Read error: %v", err)
		}
		proc.AddChunk(chunk)
		if *realtime {
			time.Sleep(aiCfg.WindowInterval)
		}
	}

	// Даём асинхронным задачам дорешаться
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		proc.AddChunk(nil)
		time.Sleep(50 * time.Millisecond)
	}

	printTimeline(tl, handler)
}

func printTimeline(tl *timeline.Timeline, handler *ai.SpeakerHandler) {
	segments := tl.Segments()
	fmt.Printf("\n%d segments, speakers: %v\n\n", len(segments), handler.ActiveSpeakers())
	for _, seg := range segments {
		if !seg.IsSpeech {
			continue
		}
		fmt.Printf("%7.2f - %7.2f  %s\n", seg.Start, seg.End(), seg.Speaker)
	}
}

package ai

import (
	"fmt"
	"log"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNX Runtime глобальная инициализация
var (
	onnxInitialized bool
	onnxInitMu      sync.Mutex
)

// initONNXRuntime загружает разделяемую библиотеку ONNX Runtime и
// инициализирует окружение. Повторные вызовы — no-op. Путь берётся из
// ONNXRUNTIME_SHARED_LIBRARY_PATH, иначе ищется в стандартных местах.
func initONNXRuntime() error {
	onnxInitMu.Lock()
	defer onnxInitMu.Unlock()

	if onnxInitialized {
		return nil
	}

	libPath := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")

	if libPath == "" {
		searchPaths := []string{
			// Рядом с исполняемым файлом
			"./libonnxruntime.so",
			"./libonnxruntime.dylib",
			"./onnxruntime.dll",
			// Системные пути (linux)
			"/usr/lib/libonnxruntime.so",
			"/usr/local/lib/libonnxruntime.so",
			// В Resources директории приложения (для .app bundle)
			"../Resources/libonnxruntime.dylib",
		}

		for _, path := range searchPaths {
			if _, err := os.Stat(path); err == nil {
				libPath = path
				break
			}
		}
	}

	if libPath == "" {
		return fmt.Errorf("ONNX Runtime library not found")
	}

	log.Printf("Using ONNX Runtime library: %s", libPath)
	ort.SetSharedLibraryPath(libPath)

	if err := ort.InitializeEnvironment(); err != nil {
		return err
	}

	onnxInitialized = true
	log.Println("ONNX Runtime initialized successfully")
	return nil
}

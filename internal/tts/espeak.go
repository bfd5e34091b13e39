package tts

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <espeak-ng/speak_lib.h>

int
espeak_say(const char *text, const char *voice, int rate)
{
	if (!text || !voice)
	{ return -1; }

	if (espeak_Initialize(AUDIO_OUTPUT_SYNCH_PLAYBACK, 500, NULL, 0) < 0)
	{ return -2; }

	espeak_VOICE specs = { .languages = voice };
	espeak_SetVoiceByProperties(&specs);
	if (rate > 0)
	{ espeak_SetParameter(espeakRATE, rate, 0); }

	espeak_Synth(text, 500, 0, 0, 0, espeakCHARS_AUTO, NULL, NULL);
	espeak_Synchronize();
	espeak_Terminate();

	return 0;
}
*/
import "C"

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"
	"unsafe"
)

const DefaultVoice = "es"

// Espeak speaks through espeak-ng. Calls are serialised since the library
// keeps global state.
type Espeak struct {
	mu    sync.Mutex
	voice string
	rate  int
}

// NewEspeak uses voice (an espeak language such as "es") and rate in words
// per minute; rate <= 0 keeps the espeak default.
func NewEspeak(voice string, rate int) *Espeak {
	if voice == "" {
		voice = DefaultVoice
	}
	return &Espeak{voice: voice, rate: rate}
}

// Speak blocks until text has been played. Synthesis cannot be interrupted,
// so ctx is only checked before starting.
func (e *Espeak) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	log.Debug("Speaking", "text", text)

	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))
	cvoice := C.CString(e.voice)
	defer C.free(unsafe.Pointer(cvoice))

	rc := C.espeak_say(ctext, cvoice, C.int(e.rate))
	if rc != 0 {
		return fmt.Errorf("espeak_say failed: %d", int(rc))
	}

	return nil
}

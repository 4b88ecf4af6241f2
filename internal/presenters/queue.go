package presenters

import (
	"fmt"
	"strings"

	"github.com/glizzus/jukebox/internal/queue"
)

const (
	InvalidURL        = "Por favor proporciona un enlace válido de YouTube."
	MetadataFailed    = "No se pudo obtener la información del video."
	NotInVoice        = "Debes estar en un canal de voz para reproducir música."
	ConnectFailed     = "Hubo un error al intentar conectar al canal de voz."
	NothingToSkip     = "No hay canciones en la cola para saltar."
	NothingToStop     = "No hay canciones en reproducción."
	Stopped           = "🛑 Se ha detenido la reproducción y limpiado la cola."
	NothingPlaying    = "No hay ninguna canción reproduciéndose."
	Paused            = "⏸️ Canción en pausa."
	NothingPaused     = "No hay ninguna canción en pausa."
	Resumed           = "▶️ Canción reanudada."
	EmptyQueue        = "La cola está vacía."
	queueListingTitle = "🎶 **Cola de reproducción:**"
)

func NowPlaying(song queue.Song) string {
	return fmt.Sprintf("🎶 Ahora reproduciendo: **%s**", song.Title)
}

func Added(song queue.Song) string {
	return fmt.Sprintf("🎶 **%s** ha sido añadida a la cola.", song.Title)
}

// QueueListing numbers songs from 1, head first.
func QueueListing(songs []queue.Song) string {
	if len(songs) == 0 {
		return EmptyQueue
	}

	var b strings.Builder
	b.WriteString(queueListingTitle)
	for i, song := range songs {
		fmt.Fprintf(&b, "\n%d. %s", i+1, song.Title)
	}
	return b.String()
}

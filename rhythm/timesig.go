package rhythm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidTimeSignature = errors.New("invalid time signature")

// TimeSignature is a "<beats>/<unit>" meter such as 4/4 or 6/8.
type TimeSignature struct {
	Beats     int // number of beats per measure
	NoteValue int // note that represents one beat
}

func (ts TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", ts.Beats, ts.NoteValue)
}

// ParseTimeSignature parses strings like "3/4". A bare number is read as beats over a quarter note.
func ParseTimeSignature(input string) (TimeSignature, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return TimeSignature{}, fmt.Errorf("%w: empty", ErrInvalidTimeSignature)
	}

	parts := strings.Split(input, "/")
	if len(parts) > 2 {
		return TimeSignature{}, fmt.Errorf("%w: %q", ErrInvalidTimeSignature, input)
	}

	beats, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || beats < 1 {
		return TimeSignature{}, fmt.Errorf("%w: bad beat count in %q", ErrInvalidTimeSignature, input)
	}

	noteValue := 4
	if len(parts) == 2 {
		noteValue, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || noteValue < 1 {
			return TimeSignature{}, fmt.Errorf("%w: bad note value in %q", ErrInvalidTimeSignature, input)
		}
	}

	return TimeSignature{Beats: beats, NoteValue: noteValue}, nil
}

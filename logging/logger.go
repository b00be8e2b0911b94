package logging

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

var (
	logout = zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
		// Format the player ID
		FormatPrepare: func(e map[string]interface{}) error {
			e["playerID"] = fmt.Sprintf("[%s]", e["playerID"])
			return nil
		},
		// Change the order in which things appear
		PartsOrder: []string{
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
			"playerID",
			zerolog.MessageFieldName,
		},
		// Prevent the playerID from being printed again
		FieldsExclude: []string{"playerID"},
	}
)

// GetLogger returns a formatted logger tagged with the given player id
func GetLogger(id int32) zerolog.Logger {
	// Disable logging based on the MPCLOG environment variable
	var logLevel zerolog.Level
	if os.Getenv("MPCLOG") == "no" {
		logLevel = zerolog.Disabled
	} else {
		logLevel = zerolog.InfoLevel
	}

	return zerolog.New(logout).
		Level(logLevel).
		With().
		Timestamp().
		Str("playerID", strconv.Itoa(int(id))).
		Logger()
}

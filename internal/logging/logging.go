package logging

import (
	"log"
	"os"
)

func New() *log.Logger {
	return log.New(os.Stdout, "snapwatch ", log.LstdFlags|log.LUTC)
}

package config

import "time"

type Config struct {
	Bind          string
	Port          int
	BackendURL    string
	Language      string
	SuggestTopic  string
	TotalRounds   int
	MinPlayers    int
	PollInterval  time.Duration
	MinDwell      time.Duration
	ExportEnabled bool
	ExportFile    string
	Verbose       bool
}

func Default() Config {
	return Config{
		Bind:          "0.0.0.0",
		Port:          8080,
		BackendURL:    "http://127.0.0.1:7071/api",
		Language:      "en",
		SuggestTopic:  "make a random quiplash prompt",
		TotalRounds:   3,
		MinPlayers:    3,
		PollInterval:  500 * time.Millisecond,
		MinDwell:      3 * time.Second,
		ExportEnabled: true,
		ExportFile:    "./promptparty-results.txt",
	}
}

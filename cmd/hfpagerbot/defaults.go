package main

import (
	"github.com/spf13/viper"

	"github.com/R6DJO/HFpager-bot/internal/config"
)

func initViperDefaults() {
	config.SetDefaults(viper.GetViper())
}

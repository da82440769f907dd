package conf

import "github.com/spf13/viper"

// setDefaultConfig registers the default value for every setting, so a
// partial config file still unmarshals into a complete Settings.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Main
	viper.SetDefault("main.name", "tonewire")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/tonewire.log")
	viper.SetDefault("main.log.maxsize", 10)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxage", 30)
	viper.SetDefault("main.log.compress", true)

	// Modem; zero values defer to the selected mode.
	viper.SetDefault("modem.mode", "audible")
	viper.SetDefault("modem.volume", 0.8)
	viper.SetDefault("modem.bitrate", 0)
	viper.SetDefault("modem.markfreq", 0)
	viper.SetDefault("modem.spacefreq", 0)
	viper.SetDefault("modem.preamblebits", 0)
	viper.SetDefault("modem.postamblebits", 0)

	// Transmitter
	viper.SetDefault("transmitter.chunkms", 100)
	viper.SetDefault("transmitter.leadinms", 200)
	viper.SetDefault("transmitter.leadoutms", 150)

	// Receiver
	viper.SetDefault("receiver.noisethreshold", 0.02)
	viper.SetDefault("receiver.silencetimeoutms", 500)
	viper.SetDefault("receiver.timeoutseconds", 10)
	viper.SetDefault("receiver.gain.enabled", true)
	viper.SetDefault("receiver.gain.targetpeak", 0.5)
	viper.SetDefault("receiver.gain.maxgain", 20.0)

	// Realtime
	viper.SetDefault("realtime.audio.source", "")
	viper.SetDefault("realtime.audio.playback", "")
	viper.SetDefault("realtime.mqtt.enabled", false)
	viper.SetDefault("realtime.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("realtime.mqtt.topic", "tonewire/frames")
	viper.SetDefault("realtime.mqtt.username", "")
	viper.SetDefault("realtime.mqtt.password", "")
	viper.SetDefault("realtime.mqtt.retain", false)
	viper.SetDefault("realtime.telemetry.enabled", false)
	viper.SetDefault("realtime.telemetry.listen", "0.0.0.0:8090")

	// Output
	viper.SetDefault("output.path", "output")
}

package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ RawConfigLoader = YAMLFileLoader{}
	_ RawConfigLoader = EnvLoader{}
	_ RawConfigLoader = MultiLoader{}
	_ RawConfigLoader = StaticRawConfigLoader{}
	_ OptionsResolver = GoOptionsResolver{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)

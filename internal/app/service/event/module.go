package event

import "go.uber.org/fx"

var Module = fx.Options(
	fx.Provide(NewRecorder, NewRelay, NewService),
	fx.Invoke(registerRelay),
)

package telemetry

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Logger = logrus.FieldLogger

type Plugin interface {
	Init(logger Logger) error

	OnNewSession(header PacketHeader) error
	OnSessionInfo(session SessionInfo) error
	OnLapData(header PacketHeader, cars []CarLapData) error
	OnCarTelemetry(header PacketHeader, cars []CarTelemetry) error
	OnCarStatus(header PacketHeader, cars []CarStatus) error
	OnParticipants(header PacketHeader, participants []Participant) error
}

type multiPlugin struct {
	plugins []Plugin
}

func MultiPlugin(plugins ...Plugin) Plugin {
	return &multiPlugin{plugins: plugins}
}

func (mp *multiPlugin) each(fn func(plugin Plugin) error) error {
	g, _ := errgroup.WithContext(context.Background())

	for _, plugin := range mp.plugins {
		plugin := plugin
		g.Go(func() error {
			return fn(plugin)
		})
	}

	return g.Wait()
}

func (mp *multiPlugin) Init(logger Logger) error {
	return mp.each(func(plugin Plugin) error {
		return plugin.Init(logger)
	})
}

func (mp *multiPlugin) OnNewSession(header PacketHeader) error {
	return mp.each(func(plugin Plugin) error {
		return plugin.OnNewSession(header)
	})
}

func (mp *multiPlugin) OnSessionInfo(session SessionInfo) error {
	return mp.each(func(plugin Plugin) error {
		return plugin.OnSessionInfo(session)
	})
}

func (mp *multiPlugin) OnLapData(header PacketHeader, cars []CarLapData) error {
	return mp.each(func(plugin Plugin) error {
		return plugin.OnLapData(header, cars)
	})
}

func (mp *multiPlugin) OnCarTelemetry(header PacketHeader, cars []CarTelemetry) error {
	return mp.each(func(plugin Plugin) error {
		return plugin.OnCarTelemetry(header, cars)
	})
}

func (mp *multiPlugin) OnCarStatus(header PacketHeader, cars []CarStatus) error {
	return mp.each(func(plugin Plugin) error {
		return plugin.OnCarStatus(header, cars)
	})
}

func (mp *multiPlugin) OnParticipants(header PacketHeader, participants []Participant) error {
	return mp.each(func(plugin Plugin) error {
		return plugin.OnParticipants(header, participants)
	})
}

type nilPlugin struct{}

func (n nilPlugin) Init(_ Logger) error {
	return nil
}

func (n nilPlugin) OnNewSession(_ PacketHeader) error {
	return nil
}

func (n nilPlugin) OnSessionInfo(_ SessionInfo) error {
	return nil
}

func (n nilPlugin) OnLapData(_ PacketHeader, _ []CarLapData) error {
	return nil
}

func (n nilPlugin) OnCarTelemetry(_ PacketHeader, _ []CarTelemetry) error {
	return nil
}

func (n nilPlugin) OnCarStatus(_ PacketHeader, _ []CarStatus) error {
	return nil
}

func (n nilPlugin) OnParticipants(_ PacketHeader, _ []Participant) error {
	return nil
}

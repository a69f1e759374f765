package core

import (
	"evpilot/api"
	"evpilot/internal"
	"evpilot/internal/config"
	"evpilot/metrics"
	"evpilot/models"
	"evpilot/service"
	"evpilot/telegram"
	"evpilot/transport"
	"evpilot/types"
	"fmt"
	"log"
	"time"
)

// System wires configuration, storage, the fleet transport and the
// operator surfaces together and runs them.
type System struct {
	conf       *config.Config
	logger     *internal.Logger
	store      *service.Store
	sessions   *service.SessionManager
	aggregator *service.Aggregator
	controller *service.Controller
	apiServer  *api.Server
}

func NewSystem() (*System, error) {
	conf, err := config.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("configuration load failed: %s", err)
	}

	log.Println("set time zone to " + conf.TimeZone)
	location, err := time.LoadLocation(conf.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time zone initialization failed: %s", err)
	}

	var database internal.Database
	if conf.Mongo.Enabled {
		database, err = internal.NewMongoClient(conf)
		if err != nil {
			return nil, fmt.Errorf("mongodb setup failed: %s", err)
		}
		log.Println("mongodb is configured and enabled")
	} else {
		log.Println("database is disabled")
	}

	logService := internal.NewLogger(location)
	if conf.IsDebug != nil {
		logService.SetDebugMode(*conf.IsDebug)
	}
	logService.SetDatabase(database)

	store := service.NewStore(logService)
	sessions := service.NewSessionManager(store, conf.Telemetry.CostPerKwh, logService)
	sessions.SetDatabase(database)

	aggregator := service.NewAggregator(store,
		time.Duration(conf.Telemetry.GunInterval)*time.Second,
		time.Duration(conf.Telemetry.PollInterval)*time.Second,
		logService)
	aggregator.SetDatabase(database)
	aggregator.SetSessionManager(sessions)
	sessions.SetWatcher(aggregator)

	events := internal.NewEventRouter()
	if conf.Telegram.Enabled {
		telegramBot, err := telegram.NewBot(conf.Telegram.ApiKey)
		if err != nil {
			return nil, fmt.Errorf("telegram bot setup failed: %s", err)
		}
		telegramBot.Start()
		events.AddEventListener(telegramBot)
		log.Println("telegram bot is configured and enabled")
	}
	sessions.SetEventHandler(events)
	aggregator.SetEventHandler(events)

	fleet, err := newFleetTransport(conf, store, database, logService)
	if err != nil {
		return nil, err
	}

	controller := service.NewController(fleet, store, sessions, logService)
	controller.SetEventHandler(events)
	controller.SetCommandTimeout(time.Duration(conf.Fleet.CommandTimeout) * time.Second)

	apiServer := api.NewServer(conf)
	apiServer.SetLogger(logService)
	apiServer.SetController(controller)
	apiServer.SetStore(store)
	apiServer.SetDatabase(database)

	return &System{
		conf:       conf,
		logger:     logService,
		store:      store,
		sessions:   sessions,
		aggregator: aggregator,
		controller: controller,
		apiServer:  apiServer,
	}, nil
}

// newFleetTransport builds either the live websocket connection or the
// built-in simulator when no fleet url is configured. Chargers come
// from the database when one is attached, otherwise a demo fleet is
// registered.
func newFleetTransport(conf *config.Config, store *service.Store, database internal.Database, logger internal.LogHandler) (transport.Transport, error) {
	chargers, connectors := loadFleet(database, logger)

	if conf.Fleet.Url != "" {
		registerFleet(store, nil, chargers, connectors)
		log.Println("connecting to fleet controller at " + conf.Fleet.Url)
		return transport.NewClient(conf.Fleet.Url,
			time.Duration(conf.Fleet.ReconnectInterval)*time.Second, logger), nil
	}

	log.Println("no fleet url configured, using built-in simulator")
	simulator := transport.NewSimulator(logger)
	registerFleet(store, simulator, chargers, connectors)
	return simulator, nil
}

func loadFleet(database internal.Database, logger internal.LogHandler) ([]models.Charger, []models.Connector) {
	if database != nil {
		chargers, err := database.GetChargers()
		if err != nil {
			logger.Error("reading chargers", err)
		}
		connectors, err := database.GetConnectors()
		if err != nil {
			logger.Error("reading connectors", err)
		}
		if len(chargers) > 0 {
			return chargers, connectors
		}
	}
	chargers, connectors := demoFleet()
	seedRegistry(database, logger, chargers, connectors)
	return chargers, connectors
}

// seedRegistry persists the demo fleet so later runs load it back from
// the registry instead of re-seeding.
func seedRegistry(database internal.Database, logger internal.LogHandler, chargers []models.Charger, connectors []models.Connector) {
	if database == nil {
		return
	}
	for i := range chargers {
		if err := database.AddCharger(&chargers[i]); err != nil {
			logger.Error("seeding charger registry", err)
		}
	}
	for i := range connectors {
		if err := database.AddConnector(&connectors[i]); err != nil {
			logger.Error("seeding connector registry", err)
		}
	}
}

func registerFleet(store *service.Store, simulator *transport.Simulator, chargers []models.Charger, connectors []models.Connector) {
	for _, charger := range chargers {
		if !charger.IsEnabled {
			continue
		}
		own := make([]models.Connector, 0, 2)
		for _, connector := range connectors {
			if connector.ChargerId == charger.Id {
				own = append(own, connector)
			}
		}
		store.AddCharger(charger, own...)
		if simulator != nil {
			count := len(own)
			if count == 0 {
				count = 1
			}
			simulator.RegisterCharger(charger.Id, count)
		}
	}
}

func demoFleet() ([]models.Charger, []models.Connector) {
	chargers := []models.Charger{
		{
			Id:              "CH-001",
			IsEnabled:       true,
			Manufacturer:    "ABB",
			Model:           "Terra 54",
			FirmwareVersion: "1.4.2",
			MaxPower:        50000,
			StationId:       "station-north",
			Status:          string(types.ChargerStatusAvailable),
		},
		{
			Id:              "CH-002",
			IsEnabled:       true,
			Manufacturer:    "Alpitronic",
			Model:           "Hypercharger HYC150",
			FirmwareVersion: "2.0.1",
			MaxPower:        150000,
			StationId:       "station-north",
			Status:          string(types.ChargerStatusAvailable),
		},
		{
			Id:              "CH-003",
			IsEnabled:       true,
			Manufacturer:    "Tritium",
			Model:           "PKM150",
			FirmwareVersion: "1.9.0",
			MaxPower:        150000,
			StationId:       "station-south",
			Status:          string(types.ChargerStatusAvailable),
		},
	}
	connectors := []models.Connector{
		*models.NewConnector(1, "CH-001"),
		*models.NewConnector(1, "CH-002"),
		*models.NewConnector(2, "CH-002"),
		*models.NewConnector(1, "CH-003"),
		*models.NewConnector(2, "CH-003"),
	}
	for i := range connectors {
		if connectors[i].ChargerId != "CH-001" {
			connectors[i].MaxPower = 75000
		}
	}
	return chargers, connectors
}

func (s *System) Start() {
	s.aggregator.Start()
	if err := s.controller.Start(); err != nil {
		log.Println("fleet connection failed", err)
		return
	}

	go func() {
		if err := metrics.Listen(s.conf); err != nil {
			s.logger.Error("metrics server", err)
		}
	}()

	if err := s.apiServer.Start(); err != nil {
		s.logger.Error("api server", err)
	}
}

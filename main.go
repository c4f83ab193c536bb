package main

import (
	"os"
	"os/signal"
	"syscall"

	"odds-engine/config"
	"odds-engine/database"
	"odds-engine/logger"
	"odds-engine/services"
	"odds-engine/web"
)

func main() {
	logger.Println("Starting Dynamic Odds Engine...")

	// 加载配置
	cfg := config.Load()

	// 连接数据库
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// 运行数据库迁移
	if err := database.Migrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	logger.Println("Database connected and migrated")

	// 存储层
	quotes := services.NewSQLQuoteStore(db)
	volumes := services.NewSQLVolumeAggregator(db)
	ledger := services.NewSQLChangeLedger(db)
	policies := services.NewSQLPolicyStore(db, cfg.PolicyCacheTTL)
	events := services.NewSQLEventStore(db)

	// 通知与事件分发
	notifier := services.NewLarkNotifier(cfg.LarkWebhook)
	broker := services.NewInMemoryBroker()
	defer broker.Close()

	// 重算引擎与触发入口
	engine := services.NewRecalcEngine(quotes, volumes, ledger, policies, events, broker, notifier)
	intake := services.NewWagerIntake(volumes, engine)
	advisor := services.NewTrendAdvisor(ledger, services.DefaultTrendLookback)

	// 外部行情源（未配置时不挂载对应任务）
	var feed *services.FeedClient
	if cfg.FeedAPIBaseURL != "" {
		feed = services.NewFeedClient(cfg.FeedAPIBaseURL, cfg.FeedAPIToken)
	}

	// 保留期清理
	retention := services.NewRetentionService(ledger, volumes, events, services.RetentionConfig{
		RetainDaysChanges: cfg.RetainDaysChanges,
		RetainDaysVolumes: cfg.RetainDaysVolumes,
	})

	// 调度器：定时重算扫描 + 低频 cron 任务
	scheduler := services.NewSweepScheduler(engine, events, quotes, volumes, advisor,
		feed, retention, services.SweepSchedulerConfig{
			SweepInterval:   cfg.SweepInterval,
			SweepWorkers:    cfg.SweepWorkers,
			PerEventTimeout: cfg.PerEventTimeout,
			FeedCronSpec:    cfg.FeedCronSpec,
			RetentionCron:   cfg.RetentionCron,
		})
	scheduler.Start()
	defer scheduler.Stop()

	// AMQP 投注消息消费
	var consumer *services.WagerConsumer
	if cfg.WagerIntakeOn {
		consumer = services.NewWagerConsumer(cfg.AMQPUrl, cfg.WagerQueue, intake)
		if err := consumer.Start(); err != nil {
			// 消费者起不来不影响 HTTP 入口和定时扫描
			logger.Errorf("Failed to start wager consumer: %v", err)
			consumer = nil
		} else {
			defer consumer.Stop()
		}
	}

	// WebSocket Hub：订阅变更事件推送给前端
	hub := web.NewHub()
	go hub.Run()
	go hub.ConsumeChanges(broker)

	// HTTP 服务器
	server := web.NewServer(cfg, web.Deps{
		Engine:   engine,
		Quotes:   quotes,
		Volumes:  volumes,
		Ledger:   ledger,
		Policies: policies,
		Events:   events,
		Advisor:  advisor,
		Intake:   intake,
	}, hub)

	go func() {
		logger.Printf("HTTP server listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Errorf("HTTP server stopped: %v", err)
		}
	}()
	defer server.Stop()

	if err := notifier.NotifyServiceStart(cfg.Environment); err != nil {
		logger.Warnf("Failed to send startup notification: %v", err)
	}

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("Shutting down...")
}

package main

import (
	"context"
	"fmt"

	contractx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/contract"
	flowx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/flow"
	idlex "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/idle"
	pipelinex "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/pipeline"
	retrievalx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/retrieval"
	statex "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/state"
	suggestx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/suggest"
	turnx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/agent/turn"
	azurex "github.com/ParthShindenovus/Whipsmart-Admin-Backend/pkg/azureopenai"
	configx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/pkg/config"
	_ "github.com/ParthShindenovus/Whipsmart-Admin-Backend/pkg/logger/autoload"
	qstashx "github.com/ParthShindenovus/Whipsmart-Admin-Backend/pkg/qstash"
)

func main() {
	ctx := context.Background()

	azureCfg := configx.MustNew[azurex.Config]("AZURE_OPENAI")
	reasoner := azurex.MustNew(*azureCfg)

	retrievalCfg := configx.MustNew[retrievalx.Config]("RETRIEVAL")
	retriever := retrievalx.MustNew(*retrievalCfg)

	redisCfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
	store, err := statex.NewUpstashRedisStore(*redisCfg)
	if err != nil {
		panic(err)
	}

	postgresCfg := configx.MustNew[statex.PostgresConfig]("POSTGRES")
	msgLog, err := statex.NewPostgresMessageLog(*postgresCfg)
	if err != nil {
		panic(err)
	}
	defer msgLog.Close()
	if err := msgLog.EnsureSchema(ctx); err != nil {
		panic(err)
	}

	qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
	publisher := qstashx.MustNew(*qstashCfg)

	pipelineCfg := configx.MustNew[pipelinex.Config]("PIPELINE")
	pipeline, err := pipelinex.New(reasoner, retriever, *pipelineCfg)
	if err != nil {
		panic(err)
	}

	suggestCfg := configx.MustNew[suggestx.Config]("SUGGEST")
	suggester := suggestx.NewGenerator(reasoner, *suggestCfg)

	router := flowx.NewRouter(
		flowx.NewSalesFlow(pipeline),
		flowx.NewSupportFlow(pipeline),
		flowx.NewKnowledgeFlow(pipeline, suggester),
	)

	var agent *turnx.Agent

	idleCfg := configx.MustNew[idlex.Config]("IDLE")
	supervisor, err := idlex.NewSupervisor(store, *idleCfg, func(sessionID string, event contractx.StreamEvent) {
		agent.NotifyIdle(sessionID, event)
	})
	if err != nil {
		panic(err)
	}
	defer supervisor.Close()

	agent, err = turnx.New(store, router, publisher, msgLog, turnx.WithIdleSupervisor(supervisor))
	if err != nil {
		panic(err)
	}

	fmt.Println("Config and clients loaded")
}

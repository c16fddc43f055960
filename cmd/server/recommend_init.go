// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/sahayak/internal/config"
	"github.com/tomtom215/sahayak/internal/database"
	"github.com/tomtom215/sahayak/internal/datasource"
	"github.com/tomtom215/sahayak/internal/embedding"
	"github.com/tomtom215/sahayak/internal/models"
	"github.com/tomtom215/sahayak/internal/recommend"
	"github.com/tomtom215/sahayak/internal/recommend/engines"
	"github.com/tomtom215/sahayak/internal/recommend/storage"
)

// startupRegenTimeout bounds the synchronous rebuild of missing static
// artifacts before the server starts.
const startupRegenTimeout = 5 * time.Minute

// RecommendComponents holds the recommendation side of the server.
type RecommendComponents struct {
	Layer        *datasource.Layer
	Directory    *datasource.Directory
	Store        *storage.Store
	Orchestrator *recommend.Orchestrator
	Regenerator  *recommend.Regenerator
}

// Close releases the artifact store.
func (c *RecommendComponents) Close() error {
	if c == nil || c.Store == nil {
		return nil
	}
	return c.Store.Close()
}

// buildClusterConfig maps the recommend section onto the demographic
// engine's cluster configuration.
func buildClusterConfig(cfg *config.RecommendConfig) (engines.ClusterConfig, error) {
	cc := engines.DefaultClusterConfig()
	if len(cfg.AgeBuckets) > 0 {
		buckets, err := engines.ParseAgeBuckets(cfg.AgeBuckets)
		if err != nil {
			return engines.ClusterConfig{}, fmt.Errorf("age buckets: %w", err)
		}
		cc.AgeBuckets = buckets
	}
	if len(cfg.ClusterAttributes) > 0 {
		cc.Attributes = append([]string(nil), cfg.ClusterAttributes...)
	}
	if len(cfg.RelaxationOrder) > 0 {
		cc.RelaxationOrder = append([]string(nil), cfg.RelaxationOrder...)
	}
	cc.ReligionGrouping = cfg.ReligionGrouping
	if cfg.ClusterTopN > 0 {
		cc.TopN = cfg.ClusterTopN
	}
	return cc, nil
}

// buildSources orders the two data sources by the configured preference.
func buildSources(cfg *config.SourceConfig, db *database.DB) (primary, fallback datasource.Source) {
	dbSource := datasource.NewDuckDBSource(db.Conn(), database.SourceTables())
	fileSource := datasource.NewFileSource(cfg.FilesDir)
	if cfg.Preferred == string(datasource.SourceFiles) {
		return fileSource, dbSource
	}
	return dbSource, fileSource
}

// initRecommend builds the data access layer, the engines and the artifact
// store, restores persisted artifacts and rebuilds the static ones that are
// missing. Content similarity is rebuilt in the background because it
// depends on the embedding provider.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func initRecommend(ctx context.Context, cfg *config.Config, db *database.DB, logger zerolog.Logger) (*RecommendComponents, error) {
	primary, fallback := buildSources(&cfg.Source, db)
	layer := datasource.NewLayer(ctx, primary, fallback, logger.With().Str("component", "datasource").Logger())
	directory := datasource.NewDirectory(layer, cfg.Source.DirectoryTTL, cfg.Source.SensitiveKeywords,
		logger.With().Str("component", "directory").Logger())

	clusterCfg, err := buildClusterConfig(&cfg.Recommend)
	if err != nil {
		return nil, err
	}
	demographic, err := engines.NewDemographicEngine(clusterCfg)
	if err != nil {
		return nil, fmt.Errorf("demographic engine: %w", err)
	}

	embedder := embedding.NewClient(&cfg.Embedding, logger.With().Str("component", "embedding").Logger())
	if !embedder.Configured() {
		logger.Warn().Msg("Embedding provider not configured (OPENAI_API_KEY); content recommendations stay empty")
	}

	content := engines.NewContentEngine(embedder, logger.With().Str("component", "content").Logger())
	if cfg.Embedding.EnhanceDescriptions && embedder.Configured() {
		content.SetEnhancer(embedder)
		logger.Info().Str("chat_model", cfg.Embedding.ChatModel).Msg("Service descriptions are enhanced before embedding")
	}

	eng := &recommend.Engines{
		District:    engines.NewDistrictEngine(cfg.Recommend.MaxRanked),
		Demographic: demographic,
		Block:       engines.NewBlockEngine(cfg.Recommend.MaxRanked),
		Content:     content,
	}

	store, err := storage.Open(&cfg.Artifacts, logger.With().Str("component", "artifacts").Logger())
	if err != nil {
		return nil, err
	}

	regen := recommend.NewRegenerator(recommend.RegeneratorDeps{
		Loader:            layer,
		SensitiveKeywords: cfg.Source.SensitiveKeywords,
		Engines:           eng,
		Store:             store,
		RunLog:            db,
		Invalidator:       directory,
	}, logger.With().Str("component", "regenerator").Logger())

	orch := recommend.NewOrchestrator(directory, eng, recommend.Options{
		DistrictK:           cfg.Recommend.DistrictK,
		DemographicK:        cfg.Recommend.DemographicK,
		BlockK:              cfg.Recommend.BlockK,
		ContentK:            cfg.Recommend.ContentK,
		DefaultDistrictID:   cfg.Recommend.DefaultDistrictID,
		ExcludeUsedServices: cfg.Recommend.ExcludeUsedServices,
		RequestTimeout:      cfg.Recommend.RequestTimeout,
		HistoryDepth:        cfg.Recommend.HistoryDepth,
	}, logger.With().Str("component", "orchestrator").Logger())

	rc := &RecommendComponents{
		Layer:        layer,
		Directory:    directory,
		Store:        store,
		Orchestrator: orch,
		Regenerator:  regen,
	}
	rc.rebuildMissing(ctx, regen.Restore(ctx), logger)
	return rc, nil
}

// rebuildMissing regenerates artifacts that had nothing to restore. Static
// artifacts are built before the server starts; content is left to a
// background goroutine bound to ctx.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func (c *RecommendComponents) rebuildMissing(ctx context.Context, missing []recommend.ArtifactType, logger zerolog.Logger) {
	if len(missing) == 0 {
		logger.Info().Msg("All artifacts restored from store")
		return
	}

	var content bool
	for _, a := range missing {
		if a == recommend.ArtifactContent {
			content = true
			continue
		}
		regenCtx, cancel := context.WithTimeout(ctx, startupRegenTimeout)
		res, err := c.Regenerator.Regenerate(regenCtx, a, models.TriggerStartup)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Str("artifact", string(a)).Msg("Startup regeneration failed; category stays empty until the next rebuild")
			continue
		}
		logger.Info().Str("artifact", string(a)).Interface("rows", res.Rows).Msg("Artifact built at startup")
	}

	if content {
		go func() {
			if _, err := c.Regenerator.Regenerate(ctx, recommend.ArtifactContent, models.TriggerStartup); err != nil {
				logger.Warn().Err(err).Msg("Startup content regeneration failed")
				return
			}
			logger.Info().Msg("Content similarity built at startup")
		}()
	}
}

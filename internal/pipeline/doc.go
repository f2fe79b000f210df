// Package pipeline runs several independent crawls as one batch.
//
// A batch is typically the list of roots discovered from a sitemap. Every
// root is crawled by its own Runner obtained from a factory, so visited
// registries are never shared between crawls. The number of crawls running
// at the same time is bounded with errgroup.
package pipeline

// Package memory derives the shared thumbnail cache capacity from the
// process memory limit.
//
// The limit comes from GOMEMLIMIT when set, otherwise from the
// MEMORY_LIMIT environment variable (container limit in bytes). A fraction
// of it (THUMB_CACHE_RATIO, default 15%) becomes the cache byte budget,
// which EntriesForBudget converts into a bounded entry count using the
// RGBA cost estimate width*height*4.
package memory

// Package pool bounds how many tiles are live at once and shares decoded
// thumbnails between them.
//
// The registry holds weak references to tile registrations: the pool never
// keeps an evicted or abandoned tile alive, and registrations whose holder
// was collected simply lapse. Eviction is FIFO over the observed
// registration order. The thumbnail cache is keyed by (path, width,
// height) and bounded by entry count.
package pool

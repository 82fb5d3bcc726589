/*
Package interpreter turns the reasoning service's unstructured text into
structured feedback or item lists.

The mode is fixed by the strategy descriptor. Every statement and item passes
a content-policy filter that rejects solution-oriented phrasing; when the
filter drops a result below the mode's minimum, deterministic fallback text
derived from the focus topic takes its place, so a learner never receives an
empty result. Text segmentation is heuristic and sits behind the Segmenter
interface so a stricter structured-output mode can replace it later without
touching the state machine.
*/
package interpreter

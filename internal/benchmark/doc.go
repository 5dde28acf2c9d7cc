// Package benchmark turns raw validation results into decisions. The
// comparator anchors model errors to external reference points, either
// a published per-city baseline table or third-party ground truth
// observations joined on timestamp. The reporter condenses a whole
// sweep into a ranked model table and the final report structure.
//
// Ranking weighs cross-city fit at 0.6 and normalized inverse forecast
// error at 0.4. A model that wins on average but swings wildly between
// cities loses ties to a steadier one.
package benchmark

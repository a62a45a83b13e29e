// Package extract turns the free-text body of a return notification into a
// model.Event.
//
// Extraction is a small interpreter over lines: each trimmed, non-empty line
// is offered to an ordered list of rules and the first rule whose predicate
// matches applies its extractor. Lines matching no rule are ignored, and a
// missing line simply leaves its field empty.
//
// Default rule order:
//  1. network line   "Сеть | <partner> | <regional center>"
//  2. field lines    "Тягач: ...", "Ф.И.О. водителя: ...", ... (split on first colon)
//  3. return date    any other line carrying "возврат" and a DD.MM.YYYY token
//
// Prefix keywords are matched case-sensitively. The return keyword is not.
package extract

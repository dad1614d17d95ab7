package mcpserver

// DocumentFormatContract describes the saved timeline format that LLM
// consumers should follow when creating or importing documents.
const DocumentFormatContract = `# keyline Document Format Contract

Every document stored in the library is a JSON file ending in ` + "`" + `.am.json` + "`" + `.

## Structure

` + "```" + `json
{
  "name": "Walk cycle",
  "timebar": { "currTime": 0, "timescale": 0.12, "length": 6000 },
  "sequences": [
    {
      "type": "css_sequ_type",
      "data": {
        "name": "head",
        "selectors": ["#head"],
        "fill": "forward",
        "iterations": 1,
        "parameters": [
          { "name": "transform", "keys": [
            { "time": 0,    "value": { "tx": 0 },  "ease": "linear" },
            { "time": 1000, "value": { "tx": 100, "rz": 0.5 }, "ease": "soft" }
          ]},
          { "name": "transform-origin", "keys": [] }
        ]
      }
    }
  ],
  "easeMap": { "soft": { "points": [0.25, 0.1, 0.25, 1] } },
  "triggerMap": { "step": { "time": 350, "script": "console.log('step')" } },
  "currTrackIdx": 0
}
` + "```" + `

## Rules

1. **Times** are milliseconds. ` + "`" + `timebar.length` + "`" + ` is the document duration;
   ` + "`" + `timescale` + "`" + ` is pixels per millisecond in the editor. Zero means the default.
2. **Tracks** live in ` + "`" + `sequences` + "`" + ` (the key ` + "`" + `tracks` + "`" + ` is accepted as an alias).
   Only ` + "`" + `css_sequ_type` + "`" + ` tracks are compiled. Every track needs at least one selector.
3. **Keys** carry ` + "`" + `time` + "`" + `, ` + "`" + `value` + "`" + ` and ` + "`" + `ease` + "`" + `. Keys of one parameter are sorted by time.
   The ease of a key shapes the segment towards the next key.
4. **Transform values** are objects with ` + "`" + `tx ty tz` + "`" + ` (px), ` + "`" + `rx ry rz` + "`" + ` (radians),
   ` + "`" + `sx sy sz` + "`" + ` (scale, default 1), ` + "`" + `skewX skewY` + "`" + ` (radians) and ` + "`" + `perspective` + "`" + ` (px).
   Absent fields take their identity value. Other parameters take plain CSS strings.
5. **Eases** are either a ` + "`" + `preset` + "`" + ` (linear, ease, ease-in, ease-out, ease-in-out) or four
   cubic-bezier ` + "`" + `points` + "`" + ` x1,y1,x2,y2 with x in [0,1]. Every ease a key names must exist
   in ` + "`" + `easeMap` + "`" + `, except ` + "`" + `linear` + "`" + `.
6. **Triggers** run their script once each time playback crosses ` + "`" + `time` + "`" + `.
7. **Paths** use forward slashes and end with ` + "`" + `.am.json` + "`" + `.

## Compiling

Call ` + "`" + `compile_document` + "`" + ` to produce the playback module. The module registers
itself as ` + "`" + `root.am.pageScripts['<module>']` + "`" + `; its ` + "`" + `createPlayer()` + "`" + ` returns a
player with play, pause and seek. ` + "`" + `export_document` + "`" + ` writes it to the exports directory as ` + "`" + `<path>.am.js` + "`" + `.
`

package collyfetcher

const documentPage = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Archivo</title></head>
<body>
<div class="float-left"><h1>  Carta a Santander <small>copia</small></h1></div>
<div class="detalle">
<p><b>Sección:</b> Correspondencia</p>
<p><b>Personas:</b> Santander, Francisco de Paula</p>
<p><b>Lugares:</b> Bogotá</p>
<p><b>Palabras Clave:</b> guerra, ejército, guerra</p>
<p><b>Descripción:</b> Sobre la campaña del sur.<br>Pide tropas. NOTAS Copia en el archivo.</p>
</div>
</body></html>`
